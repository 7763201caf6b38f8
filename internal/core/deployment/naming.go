package deployment

import "github.com/artpar/gitlabstack/internal/core/domain"

// =============================================================================
// Logical Resource IDs
// =============================================================================

// Logical IDs of the resources in a plan. They are stable across runs so the
// provisioning engine can reconcile an existing deployment.
const (
	VPCID             = "GitLabVPC"
	SecretID          = "GitLabRootPassword"
	SecurityGroupID   = "GitLabSecurityGroup"
	InstanceRoleID    = "GitLabRole"
	InstanceProfileID = "GitLabInstanceProfile"
	ElasticIPID       = "GitLabElasticIP"
	InstanceID        = "GitLabInstance"
	EIPAssociationID  = "GitLabEIPAssociation"
	HostedZoneID      = "GitLabHostedZone"
	RecordID          = "GitLabARecord"
	SchedulerRoleID   = "SchedulerEC2Role"
	StartScheduleID   = "GitLabStartSchedule"
	StopScheduleID    = "GitLabStopSchedule"
)

// Output names exposed after the plan is applied.
const (
	OutputServiceURL   = "GitLabURL"
	OutputRegistryURL  = "GitLabRegistryURL"
	OutputElasticIP    = "ElasticIP"
	OutputSecretHandle = "RootPasswordSecretArn"
	OutputInstanceID   = "InstanceId"
	OutputSchedule     = "InstanceSchedule"
)

// ManagedPolicyARN returns the partition-independent ARN of an AWS managed
// policy.
//
// Example:
//
//	ManagedPolicyARN("AmazonSSMManagedInstanceCore").String()
//	// "arn:${AWS::Partition}:iam::aws:policy/AmazonSSMManagedInstanceCore"
func ManagedPolicyARN(name string) domain.Expr {
	return domain.Concat("arn:", domain.Part{Pseudo: domain.PseudoPartition}, ":iam::aws:policy/"+name)
}

// InstanceARN returns the ARN of the planned instance. An empty account is
// left to the provisioning engine to fill in.
//
// Example:
//
//	InstanceARN(domain.Environment{Region: "ap-northeast-1", Account: "123456789012"}).String()
//	// "arn:aws:ec2:ap-northeast-1:123456789012:instance/${GitLabInstance}"
func InstanceARN(env domain.Environment) domain.Expr {
	account := domain.Part{Text: env.Account}
	if env.Account == "" {
		account = domain.Part{Pseudo: domain.PseudoAccountID}
	}
	return domain.Concat("arn:aws:ec2:"+env.Region+":", account, ":instance/", domain.RefTo(InstanceID))
}
