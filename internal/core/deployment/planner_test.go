package deployment

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/gitlabstack/internal/core/domain"
	"github.com/artpar/gitlabstack/internal/core/validation"
)

func testEnv() domain.Environment {
	return domain.Environment{Region: "ap-northeast-1", Account: "123456789012"}
}

func testConfig() domain.Config {
	return domain.Config{
		VPCID:               "vpc-12345678",
		AMIID:               "ami-12345678",
		HostedZoneID:        "Z1234567890",
		DomainName:          "gitlab.example.com",
		AllowedHTTPSCIDR:    "10.0.0.0/8, 172.16.0.0/12",
		AllowedRegistryCIDR: "192.168.0.0/16,10.0.0.0/8",
		SMTPAddress:         "email-smtp.us-west-2.amazonaws.com",
		SMTPPort:            "587",
		SMTPUserName:        "test-smtp-user",
		SMTPPassword:        "test-smtp-password",
		SMTPDomain:          "example.com",
		EmailFrom:           "noreply@example.com",
		EmailDisplayName:    "GitLab Test",
		EmailReplyTo:        "noreply@example.com",
		LetsEncryptEmail:    "admin@example.com",
	}
}

func mustPlan(t *testing.T, cfg domain.Config) *domain.ResourcePlan {
	t.Helper()
	plan, err := Plan(testEnv(), cfg)
	require.NoError(t, err)
	require.NotNil(t, plan)
	return plan
}

func properties[T domain.Properties](t *testing.T, plan *domain.ResourcePlan, id string) T {
	t.Helper()
	r := plan.Resource(id)
	require.NotNil(t, r, "resource %s not in plan", id)
	props, ok := r.Properties.(T)
	require.True(t, ok, "resource %s has properties %T", id, r.Properties)
	return props
}

// =============================================================================
// Plan Shape
// =============================================================================

func TestPlan_ResourceOrder(t *testing.T) {
	plan := mustPlan(t, testConfig())

	ids := make([]string, len(plan.Resources))
	for i, r := range plan.Resources {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{
		VPCID, SecretID, SecurityGroupID, InstanceRoleID, InstanceProfileID,
		ElasticIPID, InstanceID, EIPAssociationID, HostedZoneID, RecordID,
		SchedulerRoleID, StartScheduleID, StopScheduleID,
	}, ids)
}

func TestPlan_ReferentiallyComplete(t *testing.T) {
	configs := map[string]func(*domain.Config){
		"full":     func(*domain.Config) {},
		"defaults": func(c *domain.Config) { c.AllowedHTTPSCIDR, c.AllowedRegistryCIDR, c.DomainName = "", "", "" },
		"arm64":    func(c *domain.Config) { c.Architecture, c.InstanceType = "arm64", "t4g.large" },
		"root":     func(c *domain.Config) { c.DomainName = "example.com" },
	}

	for name, mutate := range configs {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			plan := mustPlan(t, cfg)
			assert.Empty(t, plan.DanglingReferences())
		})
	}
}

func TestPlan_ImportedResources(t *testing.T) {
	plan := mustPlan(t, testConfig())

	for _, r := range plan.Resources {
		switch r.ID {
		case VPCID, HostedZoneID:
			assert.True(t, r.Imported, r.ID)
		default:
			assert.False(t, r.Imported, r.ID)
		}
	}
}

// =============================================================================
// Validation Failures
// =============================================================================

func TestPlan_MissingRequiredField(t *testing.T) {
	cfg := testConfig()
	cfg.HostedZoneID = ""

	plan, err := Plan(testEnv(), cfg)
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, validation.ErrMissingRequiredField)
}

func TestPlan_InvalidArchitecture(t *testing.T) {
	cfg := testConfig()
	cfg.Architecture = "riscv64"

	plan, err := Plan(testEnv(), cfg)
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, validation.ErrInvalidEnum)
}

func TestPlan_DiskOutOfRange(t *testing.T) {
	for _, size := range []string{"19", "abc"} {
		cfg := testConfig()
		cfg.DiskSizeGB = size

		plan, err := Plan(testEnv(), cfg)
		assert.Nil(t, plan)
		assert.ErrorIs(t, err, validation.ErrOutOfRange)
	}
}

// =============================================================================
// Derivations
// =============================================================================

func TestPlan_IngressRules(t *testing.T) {
	plan := mustPlan(t, testConfig())
	sg := properties[domain.SecurityGroupProperties](t, plan, SecurityGroupID)

	var https, registry, http []string
	for _, rule := range sg.Ingress {
		switch rule.FromPort {
		case 443:
			https = append(https, rule.CIDR)
		case 5050:
			registry = append(registry, rule.CIDR)
		case 80:
			http = append(http, rule.CIDR)
		}
	}
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, https)
	assert.Equal(t, []string{"192.168.0.0/16", "10.0.0.0/8"}, registry)
	assert.Equal(t, []string{"0.0.0.0/0"}, http)
	assert.True(t, sg.AllowAllOutbound)
	assert.Equal(t, domain.RefTo(VPCID), sg.VPC)
}

func TestPlan_RegistryCIDRDefaultsToAnywhere(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedRegistryCIDR = ""

	plan := mustPlan(t, cfg)
	sg := properties[domain.SecurityGroupProperties](t, plan, SecurityGroupID)

	var registry []string
	for _, rule := range sg.Ingress {
		if rule.FromPort == 5050 {
			registry = append(registry, rule.CIDR)
		}
	}
	assert.Equal(t, []string{"0.0.0.0/0"}, registry)
}

func TestPlan_DNSRecord(t *testing.T) {
	plan := mustPlan(t, testConfig())

	zone := properties[domain.HostedZoneProperties](t, plan, HostedZoneID)
	assert.Equal(t, "Z1234567890", zone.HostedZoneID)
	assert.Equal(t, "example.com", zone.ZoneName)

	rec := properties[domain.RecordSetProperties](t, plan, RecordID)
	assert.Equal(t, "gitlab", rec.RecordName)
	assert.Equal(t, "A", rec.Type)
	assert.Equal(t, 300, rec.TTLSeconds)
	assert.Equal(t, []domain.Ref{domain.RefTo(ElasticIPID)}, rec.Targets)
	assert.Empty(t, plan.Warnings)
}

func TestPlan_RootDomainWarns(t *testing.T) {
	cfg := testConfig()
	cfg.DomainName = "example.com"

	plan := mustPlan(t, cfg)
	rec := properties[domain.RecordSetProperties](t, plan, RecordID)
	assert.Equal(t, "example", rec.RecordName)
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "has no subdomain")
}

func TestPlan_ArchitectureMismatchWarns(t *testing.T) {
	cfg := testConfig()
	cfg.InstanceType = "t4g.medium"

	plan := mustPlan(t, cfg)
	assert.Equal(t, []string{"instance type t4g.medium is arm64 but ARCHITECTURE is x86_64"}, plan.Warnings)
}

func TestPlan_Instance(t *testing.T) {
	cfg := testConfig()
	cfg.DiskSizeGB = "100"
	cfg.SubnetID = "subnet-0abc"

	plan := mustPlan(t, cfg)
	inst := properties[domain.InstanceProperties](t, plan, InstanceID)

	assert.Equal(t, "t3.medium", inst.InstanceType)
	assert.Equal(t, map[string]string{"ap-northeast-1": "ami-12345678"}, inst.ImageIDs)
	assert.Equal(t, "subnet-0abc", inst.SubnetID)
	assert.Equal(t, domain.AttrOf(SecurityGroupID, domain.AttrGroupID), inst.SecurityGroup)
	assert.Equal(t, domain.RefTo(InstanceProfileID), inst.InstanceProfile)
	assert.Equal(t, []domain.BlockDevice{{DeviceName: "/dev/sda1", SizeGB: 100, VolumeType: "gp3", Encrypted: true}}, inst.BlockDevices)
}

func TestPlan_EIPAssociation(t *testing.T) {
	plan := mustPlan(t, testConfig())
	assoc := properties[domain.EIPAssociationProperties](t, plan, EIPAssociationID)

	assert.Equal(t, domain.AttrOf(ElasticIPID, domain.AttrAllocationID), assoc.AllocationID)
	assert.Equal(t, domain.RefTo(InstanceID), assoc.InstanceID)
}

func TestPlan_EmailDefaultsReachBootstrapScript(t *testing.T) {
	cfg := testConfig()
	cfg.EmailDisplayName = ""
	cfg.EmailReplyTo = ""

	plan := mustPlan(t, cfg)
	script := properties[domain.InstanceProperties](t, plan, InstanceID).UserData.String()

	assert.Contains(t, script, `gitlab_rails['gitlab_email_display_name'] = "GitLab"`)
	assert.Contains(t, script, `gitlab_rails['gitlab_email_reply_to'] = "noreply@example.com"`)
}

func TestPlan_SecretHandleOnlyInBootstrapScript(t *testing.T) {
	plan := mustPlan(t, testConfig())
	userData := properties[domain.InstanceProperties](t, plan, InstanceID).UserData

	assert.Equal(t, []domain.Ref{domain.RefTo(SecretID)}, userData.References())
	assert.NotContains(t, userData.String(), "ROOT_PASSWORD=root")

	secret := properties[domain.SecretProperties](t, plan, SecretID)
	assert.Equal(t, 32, secret.PasswordLength)
	assert.Equal(t, "password", secret.GenerateStringKey)
}

func TestPlan_Schedules(t *testing.T) {
	plan := mustPlan(t, testConfig())

	schedules := plan.ResourcesOfKind(domain.KindSchedule)
	require.Len(t, schedules, 2)
	for _, r := range schedules {
		s := r.Properties.(domain.ScheduleProperties)
		assert.Equal(t, []domain.Ref{domain.RefTo(InstanceID)}, s.Target.InstanceIDs)
		assert.Equal(t, domain.AttrOf(SchedulerRoleID, domain.AttrARN), s.Target.Role)
	}

	role := properties[domain.RoleProperties](t, plan, SchedulerRoleID)
	assert.Equal(t, "scheduler.amazonaws.com", role.ServicePrincipal)
	assert.Equal(t,
		"arn:aws:ec2:ap-northeast-1:123456789012:instance/${GitLabInstance}",
		role.InlinePolicies[0].Statements[0].Resources[0].String())
}

func TestPlan_SchedulerRoleWithoutAccountUsesPseudoParameter(t *testing.T) {
	plan, err := Plan(domain.Environment{Region: "us-east-1"}, testConfig())
	require.NoError(t, err)

	role := properties[domain.RoleProperties](t, plan, SchedulerRoleID)
	assert.Equal(t,
		"arn:aws:ec2:us-east-1:${AWS::AccountId}:instance/${GitLabInstance}",
		role.InlinePolicies[0].Statements[0].Resources[0].String())
}

func TestPlan_Outputs(t *testing.T) {
	plan := mustPlan(t, testConfig())

	want := map[string]string{
		OutputServiceURL:   "https://gitlab.example.com",
		OutputRegistryURL:  "https://gitlab.example.com:5050",
		OutputElasticIP:    "${GitLabElasticIP}",
		OutputSecretHandle: "${GitLabRootPassword}",
		OutputInstanceID:   "${GitLabInstance}",
		OutputSchedule:     "Instance will automatically start at 8:00 AM and stop at 10:00 PM JST (Monday-Friday)",
	}
	require.Len(t, plan.Outputs, len(want))
	for name, value := range want {
		out := plan.Output(name)
		require.NotNil(t, out, name)
		assert.Equal(t, value, out.Value.String(), name)
	}
}

// =============================================================================
// Determinism
// =============================================================================

func TestPlan_StructurallyEqualExceptID(t *testing.T) {
	a := mustPlan(t, testConfig())
	b := mustPlan(t, testConfig())

	assert.NotEqual(t, a.ID, b.ID)
	a.ID, b.ID = "", ""
	assert.Equal(t, a, b)
}

func TestPlan_ConcurrentCallsAreIndependent(t *testing.T) {
	cfg := testConfig()
	plans := make([]*domain.ResourcePlan, 8)

	var wg sync.WaitGroup
	for i := range plans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plan, err := Plan(testEnv(), cfg)
			if err == nil {
				plans[i] = plan
			}
		}(i)
	}
	wg.Wait()

	for _, p := range plans[1:] {
		require.NotNil(t, p)
		p.ID = plans[0].ID
		assert.Equal(t, plans[0], p)
	}
	assert.Equal(t, testConfig(), cfg)
}

func TestPlan_SMTPPasswordIsTheOnlyCredentialInScript(t *testing.T) {
	plan := mustPlan(t, testConfig())
	script := properties[domain.InstanceProperties](t, plan, InstanceID).UserData.String()

	assert.Equal(t, 1, strings.Count(script, "test-smtp-password"))
}

// =============================================================================
// Naming
// =============================================================================

func TestManagedPolicyARN(t *testing.T) {
	assert.Equal(t,
		"arn:${AWS::Partition}:iam::aws:policy/AmazonSSMManagedInstanceCore",
		ManagedPolicyARN("AmazonSSMManagedInstanceCore").String())
}
