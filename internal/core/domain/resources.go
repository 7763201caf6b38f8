package domain

// =============================================================================
// Resource Property Types
// =============================================================================

// Tag is a key/value tag attached to a resource.
type Tag struct {
	Key   string
	Value string
}

// VPCProperties describes an existing VPC looked up by ID.
type VPCProperties struct {
	VPCID string
}

func (VPCProperties) References() []Ref { return nil }

// SecretProperties describes a secret whose value is generated by the
// provisioning engine. The plan never holds the value itself.
type SecretProperties struct {
	Description          string
	SecretStringTemplate string
	GenerateStringKey    string
	ExcludeCharacters    string
	PasswordLength       int
}

func (SecretProperties) References() []Ref { return nil }

// IngressRule allows inbound traffic on a TCP port range from one CIDR.
type IngressRule struct {
	Protocol    string
	FromPort    int
	ToPort      int
	CIDR        string
	Description string
}

// SecurityGroupProperties describes the instance firewall.
type SecurityGroupProperties struct {
	Description      string
	VPC              Ref
	AllowAllOutbound bool
	Ingress          []IngressRule
}

func (p SecurityGroupProperties) References() []Ref { return []Ref{p.VPC} }

// PolicyStatement is a single IAM policy statement. Resources are
// expressions because they usually embed ARNs of planned resources.
type PolicyStatement struct {
	Effect    string
	Actions   []string
	Resources []Expr
}

// Policy is a named inline IAM policy.
type Policy struct {
	Name       string
	Statements []PolicyStatement
}

// RoleProperties describes an IAM role assumed by an AWS service.
type RoleProperties struct {
	ServicePrincipal  string
	ManagedPolicyARNs []Expr
	InlinePolicies    []Policy
}

func (p RoleProperties) References() []Ref {
	var refs []Ref
	for _, arn := range p.ManagedPolicyARNs {
		refs = append(refs, arn.References()...)
	}
	for _, pol := range p.InlinePolicies {
		for _, st := range pol.Statements {
			for _, res := range st.Resources {
				refs = append(refs, res.References()...)
			}
		}
	}
	return refs
}

// InstanceProfileProperties wraps a role so an instance can assume it.
type InstanceProfileProperties struct {
	Roles []Ref
}

func (p InstanceProfileProperties) References() []Ref { return append([]Ref(nil), p.Roles...) }

// ElasticIPProperties describes a static public IPv4 address.
type ElasticIPProperties struct {
	Domain string
	Tags   []Tag
}

func (ElasticIPProperties) References() []Ref { return nil }

// BlockDevice describes an EBS volume attached at launch.
type BlockDevice struct {
	DeviceName string
	SizeGB     int
	VolumeType string
	Encrypted  bool
}

// InstanceProperties describes the GitLab virtual machine.
type InstanceProperties struct {
	InstanceType string
	Architecture Architecture

	// ImageIDs maps region to machine image ID. It has exactly one entry,
	// the target region, because the image reference format is per-region.
	ImageIDs map[string]string

	VPC      Ref
	SubnetID string

	SecurityGroup   Ref
	InstanceProfile Ref
	UserData        Expr
	BlockDevices    []BlockDevice
	Tags            []Tag
}

func (p InstanceProperties) References() []Ref {
	refs := []Ref{p.VPC, p.SecurityGroup, p.InstanceProfile}
	return append(refs, p.UserData.References()...)
}

// EIPAssociationProperties binds an Elastic IP to an instance.
type EIPAssociationProperties struct {
	AllocationID Ref
	InstanceID   Ref
}

func (p EIPAssociationProperties) References() []Ref {
	return []Ref{p.AllocationID, p.InstanceID}
}

// HostedZoneProperties describes an existing Route 53 zone.
type HostedZoneProperties struct {
	HostedZoneID string
	ZoneName     string
}

func (HostedZoneProperties) References() []Ref { return nil }

// RecordSetProperties describes a DNS record in a hosted zone.
type RecordSetProperties struct {
	Zone       Ref
	RecordName string
	Type       string
	TTLSeconds int
	Targets    []Ref
}

func (p RecordSetProperties) References() []Ref {
	return append([]Ref{p.Zone}, p.Targets...)
}

// RetryPolicy bounds retries of a schedule's target invocation.
type RetryPolicy struct {
	MaximumEventAgeSeconds int
	MaximumRetryAttempts   int
}

// ScheduleTarget is the API action a schedule invokes.
type ScheduleTarget struct {
	ARN         string
	Role        Ref
	InstanceIDs []Ref
	RetryPolicy RetryPolicy
}

// ScheduleProperties describes a recurring EventBridge Scheduler schedule.
type ScheduleProperties struct {
	Name                   string
	Description            string
	Expression             string
	Timezone               string
	FlexibleTimeWindowMode string
	State                  string
	Target                 ScheduleTarget
}

func (p ScheduleProperties) References() []Ref {
	return append([]Ref{p.Target.Role}, p.Target.InstanceIDs...)
}
