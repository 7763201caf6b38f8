package deployment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/gitlabstack/internal/core/bootstrap"
	"github.com/artpar/gitlabstack/internal/core/dns"
	"github.com/artpar/gitlabstack/internal/core/domain"
	"github.com/artpar/gitlabstack/internal/core/network"
	"github.com/artpar/gitlabstack/internal/core/provider"
	"github.com/artpar/gitlabstack/internal/core/schedule"
	"github.com/artpar/gitlabstack/internal/core/validation"
)

// =============================================================================
// Fixed Resource Settings
// =============================================================================

const (
	// Secret generation. The engine generates the value; the plan only
	// describes how.
	secretDescription       = "GitLab root user password"
	secretStringTemplate    = `{"username":"root"}`
	secretGenerateStringKey = "password"
	secretExcludeCharacters = " %+~`#$&*()|[]{}:;<>?!'/@\"\\"
	secretPasswordLength    = 32

	rootDeviceName = "/dev/sda1"
	rootVolumeType = "gp3"

	recordTTL = 5 * time.Minute
)

var instanceManagedPolicies = []string{
	"CloudWatchAgentServerPolicy",
	"AmazonSSMManagedInstanceCore",
}

// =============================================================================
// Planning
// =============================================================================

// Plan validates cfg and builds the resource plan for env.
//
// Plan is pure apart from drawing a random plan ID: it performs no I/O and
// never mutates its inputs. It returns a *validation.ValidationError, and no
// plan, when the configuration is invalid.
//
// Example:
//
//	plan, err := deployment.Plan(domain.Environment{Region: "ap-northeast-1"}, cfg)
//	if errors.Is(err, validation.ErrMissingRequiredField) {
//	    // report and stop
//	}
func Plan(env domain.Environment, cfg domain.Config) (*domain.ResourcePlan, error) {
	settings, err := validation.Validate(env, cfg)
	if err != nil {
		return nil, err
	}
	return Build(env, settings)
}

// Build derives the resource plan from already validated settings.
func Build(env domain.Environment, s domain.Settings) (*domain.ResourcePlan, error) {
	userData, err := bootstrap.Script(bootstrap.Params{
		Settings: s,
		Region:   env.Region,
		Secret:   domain.RefTo(SecretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build bootstrap script: %w", err)
	}

	record := dns.SplitDomain(s.DomainName)

	plan := &domain.ResourcePlan{
		ID:          uuid.NewString(),
		Environment: env,
	}

	if dns.IsRootDomain(s.DomainName) {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"DOMAIN_NAME %q has no subdomain; record %q will be created in zone %q",
			s.DomainName, record.Label, record.Zone))
	}
	if warning := provider.ArchitectureMismatch(s.InstanceType, s.Architecture); warning != "" {
		plan.Warnings = append(plan.Warnings, warning)
	}

	plan.Resources = append(plan.Resources,
		domain.Resource{
			Kind:       domain.KindVPC,
			ID:         VPCID,
			Imported:   true,
			Properties: domain.VPCProperties{VPCID: s.VPCID},
		},
		domain.Resource{
			Kind: domain.KindSecret,
			ID:   SecretID,
			Properties: domain.SecretProperties{
				Description:          secretDescription,
				SecretStringTemplate: secretStringTemplate,
				GenerateStringKey:    secretGenerateStringKey,
				ExcludeCharacters:    secretExcludeCharacters,
				PasswordLength:       secretPasswordLength,
			},
		},
		domain.Resource{
			Kind: domain.KindSecurityGroup,
			ID:   SecurityGroupID,
			Properties: domain.SecurityGroupProperties{
				Description:      "Security group for GitLab EC2 instance",
				VPC:              domain.RefTo(VPCID),
				AllowAllOutbound: true,
				Ingress:          network.IngressRules(s.HTTPSCIDRs, s.RegistryCIDRs),
			},
		},
		domain.Resource{
			Kind:       domain.KindRole,
			ID:         InstanceRoleID,
			Properties: instanceRole(),
		},
		domain.Resource{
			Kind:       domain.KindInstanceProfile,
			ID:         InstanceProfileID,
			Properties: domain.InstanceProfileProperties{Roles: []domain.Ref{domain.RefTo(InstanceRoleID)}},
		},
		domain.Resource{
			Kind: domain.KindElasticIP,
			ID:   ElasticIPID,
			Properties: domain.ElasticIPProperties{
				Domain: "vpc",
				Tags:   []domain.Tag{{Key: "Name", Value: "GitLab-EIP"}},
			},
		},
		domain.Resource{
			Kind: domain.KindInstance,
			ID:   InstanceID,
			Properties: domain.InstanceProperties{
				InstanceType:    s.InstanceType,
				Architecture:    s.Architecture,
				ImageIDs:        map[string]string{env.Region: s.AMIID},
				VPC:             domain.RefTo(VPCID),
				SubnetID:        s.SubnetID,
				SecurityGroup:   domain.AttrOf(SecurityGroupID, domain.AttrGroupID),
				InstanceProfile: domain.RefTo(InstanceProfileID),
				UserData:        userData,
				BlockDevices: []domain.BlockDevice{{
					DeviceName: rootDeviceName,
					SizeGB:     s.DiskSizeGB,
					VolumeType: rootVolumeType,
					Encrypted:  true,
				}},
				Tags: []domain.Tag{{Key: "Name", Value: "GitLab"}},
			},
		},
		domain.Resource{
			Kind: domain.KindEIPAssociation,
			ID:   EIPAssociationID,
			Properties: domain.EIPAssociationProperties{
				AllocationID: domain.AttrOf(ElasticIPID, domain.AttrAllocationID),
				InstanceID:   domain.RefTo(InstanceID),
			},
		},
		domain.Resource{
			Kind:     domain.KindHostedZone,
			ID:       HostedZoneID,
			Imported: true,
			Properties: domain.HostedZoneProperties{
				HostedZoneID: s.HostedZoneID,
				ZoneName:     record.Zone,
			},
		},
		domain.Resource{
			Kind: domain.KindRecordSet,
			ID:   RecordID,
			Properties: domain.RecordSetProperties{
				Zone:       domain.RefTo(HostedZoneID),
				RecordName: record.Label,
				Type:       "A",
				TTLSeconds: int(recordTTL.Seconds()),
				Targets:    []domain.Ref{domain.RefTo(ElasticIPID)},
			},
		},
		domain.Resource{
			Kind:       domain.KindRole,
			ID:         SchedulerRoleID,
			Properties: schedulerRole(env),
		},
	)

	schedules := schedule.Schedules(domain.RefTo(InstanceID), domain.AttrOf(SchedulerRoleID, domain.AttrARN))
	for i, id := range []string{StartScheduleID, StopScheduleID} {
		plan.Resources = append(plan.Resources, domain.Resource{
			Kind:       domain.KindSchedule,
			ID:         id,
			Properties: schedules[i],
		})
	}

	plan.Outputs = outputs(s)

	if dangling := plan.DanglingReferences(); len(dangling) > 0 {
		// Unreachable unless the resource list above is edited inconsistently.
		return nil, fmt.Errorf("plan has dangling reference %s from %s", dangling[0].Ref, dangling[0].From)
	}

	return plan, nil
}

// =============================================================================
// Roles
// =============================================================================

func instanceRole() domain.RoleProperties {
	arns := make([]domain.Expr, len(instanceManagedPolicies))
	for i, name := range instanceManagedPolicies {
		arns[i] = ManagedPolicyARN(name)
	}
	return domain.RoleProperties{
		ServicePrincipal:  "ec2.amazonaws.com",
		ManagedPolicyARNs: arns,
		InlinePolicies: []domain.Policy{{
			Name: "ReadRootPassword",
			Statements: []domain.PolicyStatement{{
				Effect:    "Allow",
				Actions:   []string{"secretsmanager:GetSecretValue", "secretsmanager:DescribeSecret"},
				Resources: []domain.Expr{domain.RefExpr(domain.RefTo(SecretID))},
			}},
		}},
	}
}

func schedulerRole(env domain.Environment) domain.RoleProperties {
	return domain.RoleProperties{
		ServicePrincipal: "scheduler.amazonaws.com",
		InlinePolicies: []domain.Policy{{
			Name: "EC2StartStopPolicy",
			Statements: []domain.PolicyStatement{{
				Effect:    "Allow",
				Actions:   []string{"ec2:StartInstances", "ec2:StopInstances"},
				Resources: []domain.Expr{InstanceARN(env)},
			}},
		}},
	}
}

// =============================================================================
// Outputs
// =============================================================================

func outputs(s domain.Settings) []domain.Output {
	return []domain.Output{
		{
			Name:        OutputServiceURL,
			Description: "GitLab URL",
			Value:       domain.Lit(bootstrap.ServiceURL(s.DomainName)),
		},
		{
			Name:        OutputRegistryURL,
			Description: "GitLab Container Registry URL",
			Value:       domain.Lit(bootstrap.RegistryURL(s.DomainName)),
		},
		{
			Name:        OutputElasticIP,
			Description: "Elastic IP address",
			Value:       domain.RefExpr(domain.RefTo(ElasticIPID)),
		},
		{
			Name:        OutputSecretHandle,
			Description: "ARN of the secret containing GitLab root password",
			Value:       domain.RefExpr(domain.RefTo(SecretID)),
		},
		{
			Name:        OutputInstanceID,
			Description: "GitLab EC2 Instance ID",
			Value:       domain.RefExpr(domain.RefTo(InstanceID)),
		},
		{
			Name:        OutputSchedule,
			Description: "EC2 Instance Schedule Information",
			Value:       domain.Lit(schedule.Description),
		},
	}
}
