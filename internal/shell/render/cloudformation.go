// Package render turns a resource plan into a CloudFormation template.
// This is part of the Imperative Shell - it produces the artifact handed to
// the provisioning engine.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/artpar/gitlabstack/internal/core/domain"
)

// =============================================================================
// Template Types
// =============================================================================

const (
	// FormatVersion is the only CloudFormation template format version.
	FormatVersion = "2010-09-09"

	// ImageMapping is the mapping name holding region to image ID.
	ImageMapping = "GitLabAMIMap"

	// SubnetParameter is declared when the plan does not pin a subnet.
	SubnetParameter = "SubnetId"

	imageMappingKey = "AMI"
	policyVersion   = "2012-10-17"
)

var (
	ErrUnknownReference = errors.New("reference to resource not in plan")
	ErrUnsupportedKind  = errors.New("unsupported resource kind")
	ErrUnknownFormat    = errors.New("unknown template format")
)

// Value is any JSON-compatible template value.
type Value = any

// Template is a CloudFormation template. Map keys are emitted sorted, so
// rendering the same plan always produces the same bytes.
type Template struct {
	AWSTemplateFormatVersion string                                  `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string                                  `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter                    `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Mappings                 map[string]map[string]map[string]string `json:"Mappings,omitempty" yaml:"Mappings,omitempty"`
	Resources                map[string]Resource                     `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output                       `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// Parameter is a template input supplied at deploy time.
type Parameter struct {
	Type        string `json:"Type" yaml:"Type"`
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
}

// Resource is a template resource.
type Resource struct {
	Type       string           `json:"Type" yaml:"Type"`
	Properties map[string]Value `json:"Properties" yaml:"Properties"`
}

// Output is a template output.
type Output struct {
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       Value  `json:"Value" yaml:"Value"`
}

// Format selects the template serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// =============================================================================
// Rendering
// =============================================================================

// CloudFormation renders plan as a template. Imported resources are not
// emitted; references to them become their literal IDs.
//
// Example:
//
//	tmpl, err := render.CloudFormation(plan)
//	if err != nil {
//	    return err
//	}
//	out, err := tmpl.Marshal(render.FormatYAML)
func CloudFormation(plan *domain.ResourcePlan) (*Template, error) {
	r := &renderer{
		plan:      plan,
		imported:  make(map[string]string),
		resources: make(map[string]bool),
	}
	for _, res := range plan.Resources {
		if !res.Imported {
			r.resources[res.ID] = true
			continue
		}
		switch p := res.Properties.(type) {
		case domain.VPCProperties:
			r.imported[res.ID] = p.VPCID
		case domain.HostedZoneProperties:
			r.imported[res.ID] = p.HostedZoneID
		default:
			return nil, fmt.Errorf("%w: imported %s", ErrUnsupportedKind, res.Kind)
		}
	}

	tmpl := &Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              "GitLab on EC2",
		Resources:                make(map[string]Resource),
		Outputs:                  make(map[string]Output),
	}

	for _, res := range plan.Resources {
		if res.Imported {
			continue
		}
		props, err := r.properties(tmpl, res)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", res.ID, err)
		}
		tmpl.Resources[res.ID] = Resource{Type: string(res.Kind), Properties: props}
	}

	for _, o := range plan.Outputs {
		v, err := r.expr(o.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to render output %s: %w", o.Name, err)
		}
		tmpl.Outputs[o.Name] = Output{Description: o.Description, Value: v}
	}

	return tmpl, nil
}

// Marshal serializes the template.
func (t *Template) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		out, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

type renderer struct {
	plan      *domain.ResourcePlan
	imported  map[string]string
	resources map[string]bool
}

func (r *renderer) properties(tmpl *Template, res domain.Resource) (map[string]Value, error) {
	switch p := res.Properties.(type) {
	case domain.SecretProperties:
		return map[string]Value{
			"Description": p.Description,
			"GenerateSecretString": map[string]Value{
				"SecretStringTemplate": p.SecretStringTemplate,
				"GenerateStringKey":    p.GenerateStringKey,
				"ExcludeCharacters":    p.ExcludeCharacters,
				"PasswordLength":       p.PasswordLength,
			},
		}, nil

	case domain.SecurityGroupProperties:
		return r.securityGroup(p)

	case domain.RoleProperties:
		return r.role(p)

	case domain.InstanceProfileProperties:
		roles, err := r.refs(p.Roles)
		if err != nil {
			return nil, err
		}
		return map[string]Value{"Roles": roles}, nil

	case domain.ElasticIPProperties:
		return map[string]Value{"Domain": p.Domain, "Tags": tags(p.Tags)}, nil

	case domain.InstanceProperties:
		return r.instance(tmpl, p)

	case domain.EIPAssociationProperties:
		alloc, err := r.ref(p.AllocationID)
		if err != nil {
			return nil, err
		}
		inst, err := r.ref(p.InstanceID)
		if err != nil {
			return nil, err
		}
		return map[string]Value{"AllocationId": alloc, "InstanceId": inst}, nil

	case domain.RecordSetProperties:
		return r.recordSet(p)

	case domain.ScheduleProperties:
		return r.schedule(p)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, res.Kind)
}

func (r *renderer) securityGroup(p domain.SecurityGroupProperties) (map[string]Value, error) {
	vpc, err := r.ref(p.VPC)
	if err != nil {
		return nil, err
	}

	// EC2 rejects a permission that is already present, so identical
	// rules collapse to the first one.
	type permission struct {
		protocol string
		from, to int
		cidr     string
	}
	seen := make(map[permission]bool, len(p.Ingress))
	ingress := make([]Value, 0, len(p.Ingress))
	for _, rule := range p.Ingress {
		key := permission{rule.Protocol, rule.FromPort, rule.ToPort, rule.CIDR}
		if seen[key] {
			continue
		}
		seen[key] = true
		ingress = append(ingress, map[string]Value{
			"IpProtocol":  rule.Protocol,
			"FromPort":    rule.FromPort,
			"ToPort":      rule.ToPort,
			"CidrIp":      rule.CIDR,
			"Description": rule.Description,
		})
	}

	props := map[string]Value{
		"GroupDescription":     p.Description,
		"VpcId":                vpc,
		"SecurityGroupIngress": ingress,
	}
	if p.AllowAllOutbound {
		props["SecurityGroupEgress"] = []Value{map[string]Value{
			"IpProtocol":  "-1",
			"CidrIp":      "0.0.0.0/0",
			"Description": "Allow all outbound traffic by default",
		}}
	}
	return props, nil
}

func (r *renderer) role(p domain.RoleProperties) (map[string]Value, error) {
	props := map[string]Value{
		"AssumeRolePolicyDocument": map[string]Value{
			"Version": policyVersion,
			"Statement": []Value{map[string]Value{
				"Effect":    "Allow",
				"Principal": map[string]Value{"Service": p.ServicePrincipal},
				"Action":    "sts:AssumeRole",
			}},
		},
	}

	if len(p.ManagedPolicyARNs) > 0 {
		arns, err := r.exprs(p.ManagedPolicyARNs)
		if err != nil {
			return nil, err
		}
		props["ManagedPolicyArns"] = arns
	}

	if len(p.InlinePolicies) > 0 {
		policies := make([]Value, len(p.InlinePolicies))
		for i, pol := range p.InlinePolicies {
			statements := make([]Value, len(pol.Statements))
			for j, st := range pol.Statements {
				resources, err := r.exprs(st.Resources)
				if err != nil {
					return nil, err
				}
				statements[j] = map[string]Value{
					"Effect":   st.Effect,
					"Action":   st.Actions,
					"Resource": resources,
				}
			}
			policies[i] = map[string]Value{
				"PolicyName": pol.Name,
				"PolicyDocument": map[string]Value{
					"Version":   policyVersion,
					"Statement": statements,
				},
			}
		}
		props["Policies"] = policies
	}

	return props, nil
}

func (r *renderer) instance(tmpl *Template, p domain.InstanceProperties) (map[string]Value, error) {
	sg, err := r.ref(p.SecurityGroup)
	if err != nil {
		return nil, err
	}
	profile, err := r.ref(p.InstanceProfile)
	if err != nil {
		return nil, err
	}
	userData, err := r.expr(p.UserData)
	if err != nil {
		return nil, err
	}

	if tmpl.Mappings == nil {
		tmpl.Mappings = make(map[string]map[string]map[string]string)
	}
	images := make(map[string]map[string]string, len(p.ImageIDs))
	for region, id := range p.ImageIDs {
		images[region] = map[string]string{imageMappingKey: id}
	}
	tmpl.Mappings[ImageMapping] = images

	var subnet Value = p.SubnetID
	if p.SubnetID == "" {
		if tmpl.Parameters == nil {
			tmpl.Parameters = make(map[string]Parameter)
		}
		tmpl.Parameters[SubnetParameter] = Parameter{
			Type:        "AWS::EC2::Subnet::Id",
			Description: "Public subnet of the VPC to launch GitLab in",
		}
		subnet = map[string]Value{"Ref": SubnetParameter}
	}

	devices := make([]Value, len(p.BlockDevices))
	for i, d := range p.BlockDevices {
		devices[i] = map[string]Value{
			"DeviceName": d.DeviceName,
			"Ebs": map[string]Value{
				"VolumeSize": d.SizeGB,
				"VolumeType": d.VolumeType,
				"Encrypted":  d.Encrypted,
			},
		}
	}

	return map[string]Value{
		"InstanceType": p.InstanceType,
		"ImageId": map[string]Value{
			"Fn::FindInMap": []Value{ImageMapping, map[string]Value{"Ref": domain.PseudoRegion}, imageMappingKey},
		},
		"SubnetId":            subnet,
		"SecurityGroupIds":    []Value{sg},
		"IamInstanceProfile":  profile,
		"UserData":            map[string]Value{"Fn::Base64": userData},
		"BlockDeviceMappings": devices,
		"Tags":                tags(p.Tags),
	}, nil
}

func (r *renderer) recordSet(p domain.RecordSetProperties) (map[string]Value, error) {
	zone, err := r.ref(p.Zone)
	if err != nil {
		return nil, err
	}
	targets, err := r.refs(p.Targets)
	if err != nil {
		return nil, err
	}

	name := p.RecordName + "."
	if hz, ok := r.zone(p.Zone); ok && hz.ZoneName != "" {
		name = p.RecordName + "." + hz.ZoneName + "."
	}

	return map[string]Value{
		"HostedZoneId":    zone,
		"Name":            name,
		"Type":            p.Type,
		"TTL":             strconv.Itoa(p.TTLSeconds),
		"ResourceRecords": targets,
	}, nil
}

func (r *renderer) schedule(p domain.ScheduleProperties) (map[string]Value, error) {
	role, err := r.ref(p.Target.Role)
	if err != nil {
		return nil, err
	}

	input := domain.Concat(`{"InstanceIds":[`)
	for i, id := range p.Target.InstanceIDs {
		if i > 0 {
			input = domain.Concat(input, ",")
		}
		input = domain.Concat(input, `"`, id, `"`)
	}
	input = domain.Concat(input, `]}`)
	inputValue, err := r.expr(input)
	if err != nil {
		return nil, err
	}

	return map[string]Value{
		"Name":                       p.Name,
		"Description":                p.Description,
		"ScheduleExpression":         p.Expression,
		"ScheduleExpressionTimezone": p.Timezone,
		"FlexibleTimeWindow":         map[string]Value{"Mode": p.FlexibleTimeWindowMode},
		"State":                      p.State,
		"Target": map[string]Value{
			"Arn":     p.Target.ARN,
			"RoleArn": role,
			"Input":   inputValue,
			"RetryPolicy": map[string]Value{
				"MaximumEventAgeInSeconds": p.Target.RetryPolicy.MaximumEventAgeSeconds,
				"MaximumRetryAttempts":     p.Target.RetryPolicy.MaximumRetryAttempts,
			},
		},
	}, nil
}

// =============================================================================
// References and Expressions
// =============================================================================

func (r *renderer) zone(ref domain.Ref) (domain.HostedZoneProperties, bool) {
	res := r.plan.Resource(ref.Target)
	if res == nil {
		return domain.HostedZoneProperties{}, false
	}
	hz, ok := res.Properties.(domain.HostedZoneProperties)
	return hz, ok
}

// ref renders a reference as Ref, Fn::GetAtt, or the literal ID of an
// imported resource.
func (r *renderer) ref(ref domain.Ref) (Value, error) {
	if id, ok := r.imported[ref.Target]; ok {
		return id, nil
	}
	if !r.resources[ref.Target] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReference, ref)
	}
	if ref.Attribute == domain.AttrID {
		return map[string]Value{"Ref": ref.Target}, nil
	}
	return map[string]Value{"Fn::GetAtt": []Value{ref.Target, ref.Attribute}}, nil
}

func (r *renderer) refs(refs []domain.Ref) ([]Value, error) {
	out := make([]Value, len(refs))
	for i, ref := range refs {
		v, err := r.ref(ref)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// expr renders an expression as a plain string when it is literal, as the
// single reference when it is nothing else, and as Fn::Join otherwise.
func (r *renderer) expr(e domain.Expr) (Value, error) {
	if e.IsLiteral() {
		return e.String(), nil
	}

	parts := make([]Value, 0, len(e))
	for _, p := range e {
		switch {
		case p.Ref != nil:
			v, err := r.ref(*p.Ref)
			if err != nil {
				return nil, err
			}
			parts = append(parts, v)
		case p.Pseudo != "":
			parts = append(parts, map[string]Value{"Ref": p.Pseudo})
		default:
			parts = append(parts, p.Text)
		}
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return map[string]Value{"Fn::Join": []Value{"", parts}}, nil
}

func (r *renderer) exprs(es []domain.Expr) ([]Value, error) {
	out := make([]Value, len(es))
	for i, e := range es {
		v, err := r.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func tags(ts []domain.Tag) []Value {
	out := make([]Value, len(ts))
	for i, t := range ts {
		out[i] = map[string]Value{"Key": t.Key, "Value": t.Value}
	}
	return out
}
