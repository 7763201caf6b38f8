package validation

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/artpar/gitlabstack/internal/core/dns"
	"github.com/artpar/gitlabstack/internal/core/domain"
	"github.com/artpar/gitlabstack/internal/core/network"
	"github.com/artpar/gitlabstack/internal/core/provider"
)

// =============================================================================
// Configuration Validation
// =============================================================================

// requiredField pairs a configuration key with its value.
type requiredField struct {
	key   string
	value string
}

// Validate checks a raw configuration record and its target environment and
// returns the typed Settings. All violations are collected; on failure the
// returned error is a *ValidationError and Settings is the zero value.
//
// Rules:
//   - VPC_ID, GITLAB_AMI_ID, HOSTED_ZONE_ID, every SMTP_* field, EMAIL_FROM
//     and LETSENCRYPT_EMAIL are required (ErrMissingRequiredField)
//   - ARCHITECTURE is x86_64 or arm64 (ErrInvalidEnum)
//   - DISK_SIZE_GB is an integer >= 20 and SMTP_PORT an integer in
//     1..65535 (ErrOutOfRange)
//   - CIDR entries, DOMAIN_NAME and AWS_REGION are well formed, and fields
//     written into the bootstrap script hold no control characters
//     (ErrInvalidFormat)
//
// Example:
//
//	settings, err := validation.Validate(env, cfg)
//	if errors.Is(err, validation.ErrMissingRequiredField) {
//	    // ask the operator to fill in the .env file
//	}
func Validate(env domain.Environment, cfg domain.Config) (domain.Settings, error) {
	verr := &ValidationError{}

	for _, f := range []requiredField{
		{"VPC_ID", cfg.VPCID},
		{"GITLAB_AMI_ID", cfg.AMIID},
		{"HOSTED_ZONE_ID", cfg.HostedZoneID},
		{"SMTP_ADDRESS", cfg.SMTPAddress},
		{"SMTP_PORT", cfg.SMTPPort},
		{"SMTP_USER_NAME", cfg.SMTPUserName},
		{"SMTP_PASSWORD", cfg.SMTPPassword},
		{"SMTP_DOMAIN", cfg.SMTPDomain},
		{"EMAIL_FROM", cfg.EmailFrom},
		{"LETSENCRYPT_EMAIL", cfg.LetsEncryptEmail},
	} {
		if strings.TrimSpace(f.value) == "" {
			verr.add(ErrMissingRequiredField, f.key, "is required")
		}
	}

	arch := domain.Architecture(orDefault(cfg.Architecture, string(domain.DefaultArchitecture)))
	if !arch.IsValid() {
		verr.add(ErrInvalidEnum, "ARCHITECTURE", "must be %q or %q, got %q", domain.ArchX86_64, domain.ArchARM64, cfg.Architecture)
	}

	diskSize := domain.DefaultDiskSizeGB
	if cfg.DiskSizeGB != "" {
		n, err := strconv.Atoi(strings.TrimSpace(cfg.DiskSizeGB))
		switch {
		case err != nil:
			verr.add(ErrOutOfRange, "DISK_SIZE_GB", "must be a number, got %q", cfg.DiskSizeGB)
		case n < domain.MinDiskSizeGB:
			verr.add(ErrOutOfRange, "DISK_SIZE_GB", "must be at least %d GB, got %d", domain.MinDiskSizeGB, n)
		default:
			diskSize = n
		}
	}

	var smtpPort int
	if strings.TrimSpace(cfg.SMTPPort) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(cfg.SMTPPort))
		if err != nil || n < 1 || n > 65535 {
			verr.add(ErrOutOfRange, "SMTP_PORT", "must be a port number between 1 and 65535, got %q", cfg.SMTPPort)
		} else {
			smtpPort = n
		}
	}

	httpsCIDRs := network.ParseCIDRList(cfg.AllowedHTTPSCIDR)
	registryCIDRs := network.ParseCIDRList(cfg.AllowedRegistryCIDR)
	validateCIDRs(verr, "ALLOWED_HTTPS_CIDR", httpsCIDRs)
	validateCIDRs(verr, "ALLOWED_REGISTRY_CIDR", registryCIDRs)

	domainName := orDefault(cfg.DomainName, domain.DefaultDomainName)
	if err := dns.ValidateHostname(domainName); err != nil {
		verr.add(ErrInvalidFormat, "DOMAIN_NAME", "%v: %q", err, domainName)
	}

	if !provider.ValidRegion(env.Region) {
		verr.add(ErrInvalidFormat, "AWS_REGION", "must be an AWS region code, got %q", env.Region)
	}

	for _, f := range []requiredField{
		{"SMTP_ADDRESS", cfg.SMTPAddress},
		{"SMTP_USER_NAME", cfg.SMTPUserName},
		{"SMTP_PASSWORD", cfg.SMTPPassword},
		{"SMTP_DOMAIN", cfg.SMTPDomain},
		{"EMAIL_FROM", cfg.EmailFrom},
		{"EMAIL_DISPLAY_NAME", cfg.EmailDisplayName},
		{"EMAIL_REPLY_TO", cfg.EmailReplyTo},
		{"LETSENCRYPT_EMAIL", cfg.LetsEncryptEmail},
	} {
		if hasControlChars(f.value) {
			verr.add(ErrInvalidFormat, f.key, "must not contain control characters")
		}
	}

	if err := verr.orNil(); err != nil {
		return domain.Settings{}, err
	}

	return domain.Settings{
		VPCID:         cfg.VPCID,
		SubnetID:      cfg.SubnetID,
		AMIID:         cfg.AMIID,
		InstanceType:  orDefault(cfg.InstanceType, domain.DefaultInstanceType),
		Architecture:  arch,
		DiskSizeGB:    diskSize,
		HostedZoneID:  cfg.HostedZoneID,
		DomainName:    domainName,
		HTTPSCIDRs:    httpsCIDRs,
		RegistryCIDRs: registryCIDRs,
		SMTP: domain.SMTPSettings{
			Address:  cfg.SMTPAddress,
			Port:     smtpPort,
			UserName: cfg.SMTPUserName,
			Password: cfg.SMTPPassword,
			Domain:   cfg.SMTPDomain,
		},
		Email: domain.EmailSettings{
			From:        cfg.EmailFrom,
			DisplayName: orDefault(cfg.EmailDisplayName, domain.DefaultEmailDisplayName),
			ReplyTo:     orDefault(cfg.EmailReplyTo, cfg.EmailFrom),
		},
		LetsEncryptEmail: cfg.LetsEncryptEmail,
	}, nil
}

func validateCIDRs(verr *ValidationError, key string, cidrs []string) {
	for _, cidr := range cidrs {
		if err := network.ValidateCIDR(cidr); err != nil {
			verr.add(ErrInvalidFormat, key, "%v", err)
		}
	}
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func hasControlChars(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
