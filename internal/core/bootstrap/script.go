package bootstrap

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"github.com/artpar/gitlabstack/internal/core/domain"
	"github.com/artpar/gitlabstack/internal/core/provider"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// ConfigPath is where the service configuration is written.
	ConfigPath = "/etc/gitlab/gitlab.rb"

	// HealthURL is polled after reconfiguration.
	HealthURL = "http://localhost/-/health"

	// HealthCheckRetries and HealthCheckRetryDelaySeconds bound the
	// post-boot health poll. Exhausting them only logs a warning.
	HealthCheckRetries           = 10
	HealthCheckRetryDelaySeconds = 30

	// RegistryPort is the container registry's external port.
	RegistryPort = 5050

	// TimeZone is GitLab's display time zone.
	TimeZone = "Asia/Tokyo"
)

// ErrUnsafeValue is returned when a value cannot be embedded safely.
var ErrUnsafeValue = errors.New("value cannot be embedded in bootstrap script")

// handleMarker stands in for the secret reference while the template runs.
// NUL never survives checkValues, so the marker cannot collide with a value.
const handleMarker = "\x00secret-handle\x00"

// =============================================================================
// Script Assembly
// =============================================================================

// Params holds the inputs of the bootstrap script.
type Params struct {
	Settings domain.Settings
	Region   string

	// Secret is the retrieval handle of the generated root password.
	Secret domain.Ref
}

type templateData struct {
	AWSCLIURL      string
	Region         string
	ConfigPath     string
	ExternalURL    string
	RegistryURL    string
	TimeZone       string
	SMTP           domain.SMTPSettings
	Email          domain.EmailSettings
	LetsEncrypt    string
	HealthURL      string
	HealthRetries  int
	HealthDelaySec int
}

// rubyString is a value already quoted as a Ruby string literal.
type rubyString string

// shellWord is a value already quoted as a single shell word.
type shellWord string

var scriptTemplate = template.Must(template.New("user-data").Funcs(template.FuncMap{
	"ruby":   quoteRuby,
	"sh":     quoteShell,
	"handle": func() string { return handleMarker },
}).Parse(scriptText))

// Script assembles the bootstrap script. The result is an expression whose
// only reference is p.Secret; everything else is literal text.
//
// Steps, in order: install tooling and the AWS CLI, fetch the secret by its
// handle, write gitlab.rb, reconfigure, reset the root password from the
// fetched secret, then poll the health endpoint without failing on timeout.
func Script(p Params) (domain.Expr, error) {
	s := p.Settings
	data := templateData{
		AWSCLIURL:      provider.AWSCLIDownloadURL(s.Architecture),
		Region:         p.Region,
		ConfigPath:     ConfigPath,
		ExternalURL:    ServiceURL(s.DomainName),
		RegistryURL:    RegistryURL(s.DomainName),
		TimeZone:       TimeZone,
		SMTP:           s.SMTP,
		Email:          s.Email,
		LetsEncrypt:    s.LetsEncryptEmail,
		HealthURL:      HealthURL,
		HealthRetries:  HealthCheckRetries,
		HealthDelaySec: HealthCheckRetryDelaySeconds,
	}

	if err := checkValues(data); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render bootstrap script: %w", err)
	}

	var expr domain.Expr
	for i, chunk := range strings.Split(buf.String(), handleMarker) {
		if i > 0 {
			expr = domain.Concat(expr, p.Secret)
		}
		expr = domain.Concat(expr, chunk)
	}
	return expr, nil
}

// ServiceURL returns the external GitLab URL for a domain.
func ServiceURL(domainName string) string {
	return "https://" + domainName
}

// RegistryURL returns the external container registry URL for a domain.
func RegistryURL(domainName string) string {
	return fmt.Sprintf("https://%s:%d", domainName, RegistryPort)
}

// =============================================================================
// Quoting
// =============================================================================

var rubyEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `#`, `\#`)

// quoteRuby returns s as a double-quoted Ruby string literal.
func quoteRuby(s string) rubyString {
	return rubyString(`"` + rubyEscaper.Replace(s) + `"`)
}

// quoteShell returns s as a single-quoted POSIX shell word.
func quoteShell(s string) shellWord {
	return shellWord("'" + strings.ReplaceAll(s, "'", `'\''`) + "'")
}

// checkValues rejects values that no quoting can make safe inside a
// line-oriented heredoc.
func checkValues(d templateData) error {
	values := []struct {
		name  string
		value string
	}{
		{"region", d.Region},
		{"external url", d.ExternalURL},
		{"smtp address", d.SMTP.Address},
		{"smtp user name", d.SMTP.UserName},
		{"smtp password", d.SMTP.Password},
		{"smtp domain", d.SMTP.Domain},
		{"email from", d.Email.From},
		{"email display name", d.Email.DisplayName},
		{"email reply-to", d.Email.ReplyTo},
		{"letsencrypt email", d.LetsEncrypt},
	}
	for _, v := range values {
		if strings.IndexFunc(v.value, unicode.IsControl) >= 0 {
			return fmt.Errorf("%w: %s contains control characters", ErrUnsafeValue, v.name)
		}
	}
	if d.SMTP.Port < 1 || d.SMTP.Port > 65535 {
		return fmt.Errorf("%w: smtp port %d", ErrUnsafeValue, d.SMTP.Port)
	}
	return nil
}

// =============================================================================
// Template
// =============================================================================

const scriptText = `#!/bin/bash
set -e

# Update system
apt-get update -y
apt-get install -y jq unzip curl

# Install AWS CLI v2
curl {{sh .AWSCLIURL}} -o "awscliv2.zip"
unzip -q awscliv2.zip
./aws/install
rm -rf awscliv2.zip aws/

# Get the root password from Secrets Manager before GitLab configuration
SECRET_VALUE=$(aws secretsmanager get-secret-value --secret-id '{{handle}}' --region {{sh .Region}} --query SecretString --output text)
ROOT_PASSWORD=$(echo "$SECRET_VALUE" | jq -r .password)

# Back up existing gitlab.rb
if [ -f {{.ConfigPath}} ]; then
  mv {{.ConfigPath}} {{.ConfigPath}}.backup.$(date +%Y%m%d_%H%M%S)
fi

cat > {{.ConfigPath}} << 'GITLAB_RB'
# External URLs
external_url {{ruby .ExternalURL}}
registry_external_url {{ruby .RegistryURL}}

# Basic configuration
gitlab_rails['time_zone'] = {{ruby .TimeZone}}

# SMTP configuration
gitlab_rails['smtp_enable'] = true
gitlab_rails['smtp_address'] = {{ruby .SMTP.Address}}
gitlab_rails['smtp_port'] = {{.SMTP.Port}}
gitlab_rails['smtp_user_name'] = {{ruby .SMTP.UserName}}
gitlab_rails['smtp_password'] = {{ruby .SMTP.Password}}
gitlab_rails['smtp_domain'] = {{ruby .SMTP.Domain}}
gitlab_rails['smtp_authentication'] = "login"
gitlab_rails['smtp_enable_starttls_auto'] = true
gitlab_rails['gitlab_email_from'] = {{ruby .Email.From}}
gitlab_rails['gitlab_email_display_name'] = {{ruby .Email.DisplayName}}
gitlab_rails['gitlab_email_reply_to'] = {{ruby .Email.ReplyTo}}

# Let's Encrypt configuration
letsencrypt['enable'] = true
letsencrypt['contact_emails'] = [{{ruby .LetsEncrypt}}]
letsencrypt['auto_renew'] = true

# Disable SSH
gitlab_sshd['enable'] = false

# Container Registry configuration
registry['enable'] = true
GITLAB_RB

echo "Starting GitLab reconfiguration..."
gitlab-ctl reconfigure

echo "Resetting root password using gitlab-rake..."
gitlab-rake "gitlab:password:reset[root]" << EOF
$ROOT_PASSWORD
$ROOT_PASSWORD
EOF

echo "Waiting for GitLab to be ready..."
if curl -f --retry {{.HealthRetries}} --retry-delay {{.HealthDelaySec}} --retry-connrefused --retry-all-errors {{.HealthURL}} > /dev/null 2>&1; then
  echo "GitLab is ready!"
else
  echo "WARNING: GitLab may still be starting up after maximum retries"
fi
`
