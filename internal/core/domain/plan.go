package domain

import (
	"fmt"
	"strings"
)

// =============================================================================
// Resource Kinds
// =============================================================================

// ResourceKind identifies the type of a planned resource. Values are the
// CloudFormation type names so descriptors read the same as the template
// they render to.
type ResourceKind string

const (
	KindVPC             ResourceKind = "AWS::EC2::VPC"
	KindSecret          ResourceKind = "AWS::SecretsManager::Secret"
	KindSecurityGroup   ResourceKind = "AWS::EC2::SecurityGroup"
	KindRole            ResourceKind = "AWS::IAM::Role"
	KindInstanceProfile ResourceKind = "AWS::IAM::InstanceProfile"
	KindElasticIP       ResourceKind = "AWS::EC2::EIP"
	KindInstance        ResourceKind = "AWS::EC2::Instance"
	KindEIPAssociation  ResourceKind = "AWS::EC2::EIPAssociation"
	KindHostedZone      ResourceKind = "AWS::Route53::HostedZone"
	KindRecordSet       ResourceKind = "AWS::Route53::RecordSet"
	KindSchedule        ResourceKind = "AWS::Scheduler::Schedule"
)

// =============================================================================
// References and Expressions
// =============================================================================

// Attributes a Ref can select. The zero value selects the resource's primary
// identifier.
const (
	AttrID           = ""
	AttrARN          = "Arn"
	AttrGroupID      = "GroupId"
	AttrAllocationID = "AllocationId"
	AttrPublicIP     = "PublicIp"
)

// Ref points at another resource in the same plan.
type Ref struct {
	Target    string
	Attribute string
}

// String returns the placeholder form of the reference, e.g. "${Secret.Arn}".
func (r Ref) String() string {
	if r.Attribute == AttrID {
		return "${" + r.Target + "}"
	}
	return "${" + r.Target + "." + r.Attribute + "}"
}

// RefTo returns a Ref to the primary identifier of a resource.
func RefTo(id string) Ref { return Ref{Target: id} }

// AttrOf returns a Ref to a named attribute of a resource.
func AttrOf(id, attribute string) Ref { return Ref{Target: id, Attribute: attribute} }

// Pseudo parameters resolved by the provisioning engine, not by the plan.
const (
	PseudoAccountID = "AWS::AccountId"
	PseudoPartition = "AWS::Partition"
	PseudoRegion    = "AWS::Region"
)

// Part is one segment of an Expr: literal text, a reference, or a pseudo
// parameter. Exactly one field is set.
type Part struct {
	Text   string
	Ref    *Ref
	Pseudo string
}

// Expr is a string value assembled from literal text and references. It is
// how values that depend on not-yet-created resources (ARNs, instance IDs)
// are carried without ever resolving them.
type Expr []Part

// Lit returns an Expr holding only literal text.
func Lit(s string) Expr { return Expr{{Text: s}} }

// RefExpr returns an Expr holding a single reference.
func RefExpr(r Ref) Expr { return Expr{{Ref: &r}} }

// Concat joins parts into an Expr, merging adjacent literals. Accepted part
// types are string, Ref, Expr and Part.
func Concat(parts ...any) Expr {
	var e Expr
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			e = e.appendPart(Part{Text: v})
		case Ref:
			r := v
			e = e.appendPart(Part{Ref: &r})
		case Part:
			e = e.appendPart(v)
		case Expr:
			for _, sub := range v {
				e = e.appendPart(sub)
			}
		default:
			panic(fmt.Sprintf("domain.Concat: unsupported part type %T", p))
		}
	}
	return e
}

func (e Expr) appendPart(p Part) Expr {
	if p.Ref != nil || p.Pseudo != "" {
		return append(e, p)
	}
	if p.Text == "" {
		return e
	}
	if n := len(e); n > 0 && e[n-1].Ref == nil && e[n-1].Pseudo == "" {
		e[n-1].Text += p.Text
		return e
	}
	return append(e, Part{Text: p.Text})
}

// References returns every Ref used in the expression, in order.
func (e Expr) References() []Ref {
	var refs []Ref
	for _, p := range e {
		if p.Ref != nil {
			refs = append(refs, *p.Ref)
		}
	}
	return refs
}

// IsLiteral reports whether the expression has no references or pseudo
// parameters.
func (e Expr) IsLiteral() bool {
	for _, p := range e {
		if p.Ref != nil || p.Pseudo != "" {
			return false
		}
	}
	return true
}

// String renders the expression with placeholders for references, e.g.
// "arn:aws:ec2:ap-northeast-1:${AWS::AccountId}:instance/${GitLabInstance}".
func (e Expr) String() string {
	var b strings.Builder
	for _, p := range e {
		switch {
		case p.Ref != nil:
			b.WriteString(p.Ref.String())
		case p.Pseudo != "":
			b.WriteString("${" + p.Pseudo + "}")
		default:
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// =============================================================================
// Resources
// =============================================================================

// Properties is implemented by every resource property type. References
// reports the resources the properties point at; the plan uses it to check
// referential completeness.
type Properties interface {
	References() []Ref
}

// Resource is one descriptor in a ResourcePlan.
type Resource struct {
	Kind ResourceKind
	ID   string

	// Imported resources already exist and are only looked up by the
	// provisioning engine. They are never created.
	Imported bool

	Properties Properties
}

// Output is a human-readable value the provisioning engine exposes once the
// plan is applied.
type Output struct {
	Name        string
	Description string
	Value       Expr
}

// ResourcePlan is the ordered descriptor graph produced by the planner.
type ResourcePlan struct {
	// ID identifies this planning run. It is random and is the only field
	// that differs between plans built from identical configuration.
	ID string

	Environment Environment
	Resources   []Resource
	Outputs     []Output

	// Warnings are non-fatal observations about the configuration.
	Warnings []string
}

// Resource returns the resource with the given ID, or nil if not present.
func (p *ResourcePlan) Resource(id string) *Resource {
	for i := range p.Resources {
		if p.Resources[i].ID == id {
			return &p.Resources[i]
		}
	}
	return nil
}

// ResourcesOfKind returns all resources of the given kind, in plan order.
func (p *ResourcePlan) ResourcesOfKind(kind ResourceKind) []Resource {
	var out []Resource
	for _, r := range p.Resources {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Output returns the output with the given name, or nil if not present.
func (p *ResourcePlan) Output(name string) *Output {
	for i := range p.Outputs {
		if p.Outputs[i].Name == name {
			return &p.Outputs[i]
		}
	}
	return nil
}

// DanglingReference describes a Ref whose target is not in the plan.
type DanglingReference struct {
	From string
	Ref  Ref
}

// DanglingReferences returns every reference in resources and outputs that
// does not resolve to a resource in the plan. An empty result means the plan
// is referentially complete.
func (p *ResourcePlan) DanglingReferences() []DanglingReference {
	ids := make(map[string]bool, len(p.Resources))
	for _, r := range p.Resources {
		ids[r.ID] = true
	}

	var dangling []DanglingReference
	for _, r := range p.Resources {
		if r.Properties == nil {
			continue
		}
		for _, ref := range r.Properties.References() {
			if !ids[ref.Target] {
				dangling = append(dangling, DanglingReference{From: r.ID, Ref: ref})
			}
		}
	}
	for _, o := range p.Outputs {
		for _, ref := range o.Value.References() {
			if !ids[ref.Target] {
				dangling = append(dangling, DanglingReference{From: "output:" + o.Name, Ref: ref})
			}
		}
	}
	return dangling
}
