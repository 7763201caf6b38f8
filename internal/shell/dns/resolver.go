// Package dns provides DNS resolution for deployment verification.
// This is part of the Imperative Shell - handles I/O (DNS lookups).
package dns

import (
	"context"
	"net"

	coredns "github.com/artpar/gitlabstack/internal/core/dns"
)

// ipLookup is the part of *net.Resolver the Resolver uses.
type ipLookup interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Resolver performs DNS lookups for deployment verification.
type Resolver struct {
	resolver ipLookup
}

// NewResolver creates a new DNS resolver.
func NewResolver() *Resolver {
	return &Resolver{
		resolver: net.DefaultResolver,
	}
}

// Resolve performs DNS lookups for the given hostname and returns a VerificationInput
// that can be passed to the pure verification function.
func (r *Resolver) Resolve(ctx context.Context, hostname string) coredns.VerificationInput {
	input := coredns.VerificationInput{
		Hostname: hostname,
	}

	ips, err := r.resolver.LookupIPAddr(ctx, hostname)
	if err != nil {
		input.LookupError = err.Error()
		return input
	}
	for _, ip := range ips {
		if v4 := ip.IP.To4(); v4 != nil {
			input.ARecords = append(input.ARecords, v4)
		}
	}

	if len(input.ARecords) == 0 {
		input.LookupError = "no A records found for " + hostname
	}

	return input
}
