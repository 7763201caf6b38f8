package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/gitlabstack/internal/core/domain"
)

func validEnv() domain.Environment {
	return domain.Environment{Region: "ap-northeast-1", Account: "123456789012"}
}

func validConfig() domain.Config {
	return domain.Config{
		VPCID:               "vpc-12345678",
		AMIID:               "ami-12345678",
		HostedZoneID:        "Z1234567890",
		DomainName:          "gitlab.example.com",
		AllowedHTTPSCIDR:    "10.0.0.0/8,172.16.0.0/12",
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

func requireValidationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr
}

// =============================================================================
// Success and Defaults
// =============================================================================

func TestValidate_ValidConfig(t *testing.T) {
	s, err := Validate(validEnv(), validConfig())
	require.NoError(t, err)

	assert.Equal(t, "vpc-12345678", s.VPCID)
	assert.Equal(t, domain.ArchX86_64, s.Architecture)
	assert.Equal(t, 50, s.DiskSizeGB)
	assert.Equal(t, "t3.medium", s.InstanceType)
	assert.Equal(t, 587, s.SMTP.Port)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, s.HTTPSCIDRs)
	assert.Equal(t, []string{"192.168.0.0/16", "10.0.0.0/8"}, s.RegistryCIDRs)
	assert.Equal(t, "GitLab Test", s.Email.DisplayName)
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	cfg.DomainName = ""
	cfg.AllowedHTTPSCIDR = ""
	cfg.AllowedRegistryCIDR = ""
	cfg.EmailDisplayName = ""
	cfg.EmailReplyTo = ""

	s, err := Validate(validEnv(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "gitlab.example.com", s.DomainName)
	assert.Equal(t, []string{"0.0.0.0/0"}, s.HTTPSCIDRs)
	assert.Equal(t, []string{"0.0.0.0/0"}, s.RegistryCIDRs)
	assert.Equal(t, "GitLab", s.Email.DisplayName)
	assert.Equal(t, cfg.EmailFrom, s.Email.ReplyTo)
}

func TestValidate_ARM64(t *testing.T) {
	cfg := validConfig()
	cfg.Architecture = "arm64"
	cfg.DiskSizeGB = "20"

	s, err := Validate(validEnv(), cfg)
	require.NoError(t, err)
	assert.Equal(t, domain.ArchARM64, s.Architecture)
	assert.Equal(t, 20, s.DiskSizeGB)
}

// =============================================================================
// MissingRequiredField
// =============================================================================

func TestValidate_MissingRequiredField(t *testing.T) {
	fields := map[string]func(*domain.Config){
		"VPC_ID":            func(c *domain.Config) { c.VPCID = "" },
		"GITLAB_AMI_ID":     func(c *domain.Config) { c.AMIID = "" },
		"HOSTED_ZONE_ID":    func(c *domain.Config) { c.HostedZoneID = "" },
		"SMTP_ADDRESS":      func(c *domain.Config) { c.SMTPAddress = "" },
		"SMTP_PORT":         func(c *domain.Config) { c.SMTPPort = "" },
		"SMTP_USER_NAME":    func(c *domain.Config) { c.SMTPUserName = "" },
		"SMTP_PASSWORD":     func(c *domain.Config) { c.SMTPPassword = "" },
		"SMTP_DOMAIN":       func(c *domain.Config) { c.SMTPDomain = "" },
		"EMAIL_FROM":        func(c *domain.Config) { c.EmailFrom = "" },
		"LETSENCRYPT_EMAIL": func(c *domain.Config) { c.LetsEncryptEmail = "" },
	}

	for key, clear := range fields {
		t.Run(key, func(t *testing.T) {
			cfg := validConfig()
			clear(&cfg)

			s, err := Validate(validEnv(), cfg)
			assert.ErrorIs(t, err, ErrMissingRequiredField)
			assert.Zero(t, s)

			verr := requireValidationError(t, err)
			assert.Equal(t, []string{key}, verr.Fields(ErrMissingRequiredField))
			assert.Len(t, verr.Violations, 1, "missing field should not also be reported as malformed")
		})
	}
}

func TestValidate_WhitespaceOnlyIsMissing(t *testing.T) {
	cfg := validConfig()
	cfg.VPCID = "   "

	_, err := Validate(validEnv(), cfg)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	cfg := domain.Config{Architecture: "sparc", DiskSizeGB: "10"}

	_, err := Validate(validEnv(), cfg)
	verr := requireValidationError(t, err)

	assert.Len(t, verr.Fields(ErrMissingRequiredField), 10)
	assert.Equal(t, []string{"ARCHITECTURE"}, verr.Fields(ErrInvalidEnum))
	assert.Equal(t, []string{"DISK_SIZE_GB"}, verr.Fields(ErrOutOfRange))
	assert.Contains(t, err.Error(), "problems")
}

// =============================================================================
// InvalidEnum
// =============================================================================

func TestValidate_InvalidArchitecture(t *testing.T) {
	for _, arch := range []string{"amd64", "aarch64", "X86_64", "arm"} {
		t.Run(arch, func(t *testing.T) {
			cfg := validConfig()
			cfg.Architecture = arch

			_, err := Validate(validEnv(), cfg)
			assert.ErrorIs(t, err, ErrInvalidEnum)
			assert.NotErrorIs(t, err, ErrMissingRequiredField)
		})
	}
}

// =============================================================================
// OutOfRange
// =============================================================================

func TestValidate_DiskSize(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{"", 50, false},
		{"20", 20, false},
		{"100", 100, false},
		{"19", 0, true},
		{"0", 0, true},
		{"-50", 0, true},
		{"fifty", 0, true},
		{"50GB", 0, true},
		{"20.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := validConfig()
			cfg.DiskSizeGB = tt.value

			s, err := Validate(validEnv(), cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutOfRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.DiskSizeGB)
		})
	}
}

func TestValidate_SMTPPort(t *testing.T) {
	for _, port := range []string{"0", "65536", "smtp", "587; system('id')"} {
		t.Run(port, func(t *testing.T) {
			cfg := validConfig()
			cfg.SMTPPort = port

			_, err := Validate(validEnv(), cfg)
			assert.ErrorIs(t, err, ErrOutOfRange)
		})
	}
}

// =============================================================================
// InvalidFormat
// =============================================================================

func TestValidate_InvalidCIDR(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedHTTPSCIDR = "10.0.0.0/8, nope"
	cfg.AllowedRegistryCIDR = "10.0.0.0/8,,192.168.0.0/16"

	_, err := Validate(validEnv(), cfg)
	verr := requireValidationError(t, err)
	assert.Equal(t, []string{"ALLOWED_HTTPS_CIDR", "ALLOWED_REGISTRY_CIDR"}, verr.Fields(ErrInvalidFormat))
}

func TestValidate_InvalidDomainName(t *testing.T) {
	cfg := validConfig()
	cfg.DomainName = `gitlab.example.com"; curl evil`

	_, err := Validate(validEnv(), cfg)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestValidate_InvalidRegion(t *testing.T) {
	_, err := Validate(domain.Environment{Region: "$(reboot)"}, validConfig())
	verr := requireValidationError(t, err)
	assert.Equal(t, []string{"AWS_REGION"}, verr.Fields(ErrInvalidFormat))
}

func TestValidate_ControlCharacters(t *testing.T) {
	cfg := validConfig()
	cfg.SMTPPassword = "pass\nGITLAB_RB\nrm -rf /"

	_, err := Validate(validEnv(), cfg)
	verr := requireValidationError(t, err)
	assert.Equal(t, []string{"SMTP_PASSWORD"}, verr.Fields(ErrInvalidFormat))
}

// =============================================================================
// ValidationError
// =============================================================================

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Violations: []Violation{
		{Kind: ErrOutOfRange, Field: "DISK_SIZE_GB", Message: "must be at least 20 GB, got 10"},
	}}

	assert.Equal(t, "invalid configuration: DISK_SIZE_GB: must be at least 20 GB, got 10", err.Error())
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.NotErrorIs(t, err, ErrInvalidEnum)
}
