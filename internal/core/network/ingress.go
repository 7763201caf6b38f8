// Package network contains pure functions for deriving firewall rules.
// This is part of the Functional Core - all functions are pure with no I/O.
package network

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/artpar/gitlabstack/internal/core/domain"
)

// =============================================================================
// Ports
// =============================================================================

const (
	HTTPPort     = 80
	HTTPSPort    = 443
	RegistryPort = 5050
)

// =============================================================================
// CIDR Allow-Lists
// =============================================================================

var ErrInvalidCIDR = errors.New("invalid IPv4 CIDR")

// ParseCIDRList splits a comma-separated allow-list into entries.
// Entries are trimmed, order is preserved and duplicates are kept.
// An empty value means "allow all IPv4".
//
// Example:
//
//	ParseCIDRList("10.0.0.0/8, 172.16.0.0/12") // ["10.0.0.0/8", "172.16.0.0/12"]
//	ParseCIDRList("")                          // ["0.0.0.0/0"]
func ParseCIDRList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{domain.DefaultCIDR}
	}
	parts := strings.Split(raw, ",")
	cidrs := make([]string, len(parts))
	for i, p := range parts {
		cidrs[i] = strings.TrimSpace(p)
	}
	return cidrs
}

// ValidateCIDR checks that cidr is an IPv4 prefix such as "10.0.0.0/8".
func ValidateCIDR(cidr string) error {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCIDR, cidr)
	}
	if !prefix.Addr().Is4() {
		return fmt.Errorf("%w: %q is not IPv4", ErrInvalidCIDR, cidr)
	}
	return nil
}

// =============================================================================
// Ingress Rules
// =============================================================================

// IngressRules builds the security group ingress for the GitLab instance:
// one HTTPS rule per httpsCIDRs entry, one registry rule per registryCIDRs
// entry, and exactly one HTTP rule open to all IPv4 sources. The HTTP rule
// is unconditional because certificate issuance answers HTTP-01 challenges
// on port 80.
func IngressRules(httpsCIDRs, registryCIDRs []string) []domain.IngressRule {
	rules := make([]domain.IngressRule, 0, len(httpsCIDRs)+len(registryCIDRs)+1)
	for _, cidr := range httpsCIDRs {
		rules = append(rules, tcpRule(HTTPSPort, cidr, "Allow HTTPS access from "+cidr))
	}
	for _, cidr := range registryCIDRs {
		rules = append(rules, tcpRule(RegistryPort, cidr, "Allow GitLab Container Registry access from "+cidr))
	}
	rules = append(rules, tcpRule(HTTPPort, domain.DefaultCIDR, "Allow HTTP access for Lets Encrypt challenges"))
	return rules
}

func tcpRule(port int, cidr, description string) domain.IngressRule {
	return domain.IngressRule{
		Protocol:    "tcp",
		FromPort:    port,
		ToPort:      port,
		CIDR:        cidr,
		Description: description,
	}
}
