// Package dns contains pure functions for DNS naming and verification logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package dns

import (
	"errors"
	"net"
	"regexp"
	"strings"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrInvalidHostname = errors.New("invalid hostname format")
	ErrHostnameTooLong = errors.New("hostname must be under 253 characters")
)

// =============================================================================
// Validation
// =============================================================================

var hostnameRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// ValidateHostname validates a fully-qualified domain name.
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return ErrInvalidHostname
	}
	if len(hostname) > 253 {
		return ErrHostnameTooLong
	}
	if !hostnameRegex.MatchString(hostname) {
		return ErrInvalidHostname
	}
	return nil
}

// =============================================================================
// Domain Decomposition
// =============================================================================

// RecordName is a domain split into the record label and the zone it lives in.
type RecordName struct {
	Label string // leaf label, used as the record name
	Zone  string // remainder, used as the hosted zone's root name
}

// SplitDomain splits a fully-qualified domain name on its first dot.
//
// The split assumes at least one subdomain level. A bare root domain is
// split anyway (IsRootDomain reports this case) and produces a wrong but
// harmless result; a name without any dot yields an empty Zone.
//
// Example:
//
//	SplitDomain("gitlab.example.com") // {Label: "gitlab", Zone: "example.com"}
func SplitDomain(fqdn string) RecordName {
	label, zone, _ := strings.Cut(fqdn, ".")
	return RecordName{Label: label, Zone: zone}
}

// IsRootDomain reports whether fqdn has no subdomain level, i.e. its
// SplitDomain result would use the top-level domain as the zone.
func IsRootDomain(fqdn string) bool {
	return strings.Count(strings.TrimSuffix(fqdn, "."), ".") < 2
}

// =============================================================================
// Verification
// =============================================================================

// VerificationInput contains DNS lookup results passed from the shell layer.
type VerificationInput struct {
	Hostname    string
	ARecords    []net.IP
	LookupError string
}

// VerificationResult is the pure output of verification logic.
type VerificationResult struct {
	Verified bool
	Error    string
}

// Verify checks that the A records of the deployed hostname include the
// Elastic IP allocated to the instance.
func Verify(input VerificationInput, expectedIP string) VerificationResult {
	if input.LookupError != "" {
		return VerificationResult{
			Verified: false,
			Error:    "DNS lookup failed: " + input.LookupError,
		}
	}

	want := net.ParseIP(expectedIP)
	if want == nil {
		return VerificationResult{
			Verified: false,
			Error:    "expected IP is not a valid address: " + expectedIP,
		}
	}

	for _, aRecord := range input.ARecords {
		if aRecord.Equal(want) {
			return VerificationResult{Verified: true}
		}
	}

	return VerificationResult{
		Verified: false,
		Error:    "DNS records do not point to the expected address",
	}
}
