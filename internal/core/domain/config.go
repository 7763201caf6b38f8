package domain

// =============================================================================
// Configuration Record
// =============================================================================

// Config is the raw deployment configuration exactly as read from the
// configuration source. Every field is a string; parsing and defaults happen
// in validation, which turns a Config into Settings.
type Config struct {
	VPCID               string `mapstructure:"vpc_id"`
	SubnetID            string `mapstructure:"subnet_id"`
	AllowedHTTPSCIDR    string `mapstructure:"allowed_https_cidr"`
	AllowedRegistryCIDR string `mapstructure:"allowed_registry_cidr"`
	AMIID               string `mapstructure:"gitlab_ami_id"`
	InstanceType        string `mapstructure:"instance_type"`
	Architecture        string `mapstructure:"architecture"`
	DiskSizeGB          string `mapstructure:"disk_size_gb"`
	HostedZoneID        string `mapstructure:"hosted_zone_id"`
	DomainName          string `mapstructure:"domain_name"`

	SMTPAddress  string `mapstructure:"smtp_address"`
	SMTPPort     string `mapstructure:"smtp_port"`
	SMTPUserName string `mapstructure:"smtp_user_name"`
	SMTPPassword string `mapstructure:"smtp_password"`
	SMTPDomain   string `mapstructure:"smtp_domain"`

	EmailFrom        string `mapstructure:"email_from"`
	EmailDisplayName string `mapstructure:"email_display_name"`
	EmailReplyTo     string `mapstructure:"email_reply_to"`
	LetsEncryptEmail string `mapstructure:"letsencrypt_email"`
}

// Environment holds the ambient deployment target. It is not part of the
// Config record because it describes where the plan lands, not what it
// contains.
type Environment struct {
	Region  string
	Account string
}

// Defaults applied when the corresponding Config field is empty.
const (
	DefaultRegion           = "ap-northeast-1"
	DefaultInstanceType     = "t3.medium"
	DefaultArchitecture     = ArchX86_64
	DefaultDiskSizeGB       = 50
	DefaultDomainName       = "gitlab.example.com"
	DefaultCIDR             = "0.0.0.0/0"
	DefaultEmailDisplayName = "GitLab"

	MinDiskSizeGB = 20
)

// =============================================================================
// Architecture
// =============================================================================

// Architecture is the CPU architecture of the instance and its image.
type Architecture string

const (
	ArchX86_64 Architecture = "x86_64"
	ArchARM64  Architecture = "arm64"
)

// IsValid returns true if the architecture is one of the supported values.
func (a Architecture) IsValid() bool {
	switch a {
	case ArchX86_64, ArchARM64:
		return true
	}
	return false
}

// =============================================================================
// Validated Settings
// =============================================================================

// Settings is the validated, typed form of a Config. All defaults are
// resolved. Settings is only built by validation.Validate and is treated as
// immutable afterwards: derivation functions take it by value.
type Settings struct {
	VPCID        string
	SubnetID     string
	AMIID        string
	InstanceType string
	Architecture Architecture
	DiskSizeGB   int
	HostedZoneID string
	DomainName   string

	HTTPSCIDRs    []string
	RegistryCIDRs []string

	SMTP  SMTPSettings
	Email EmailSettings

	LetsEncryptEmail string
}

// SMTPSettings holds outgoing mail server settings.
type SMTPSettings struct {
	Address  string
	Port     int
	UserName string
	Password string
	Domain   string
}

// EmailSettings holds the identity GitLab uses for outgoing mail.
type EmailSettings struct {
	From        string
	DisplayName string
	ReplyTo     string
}
