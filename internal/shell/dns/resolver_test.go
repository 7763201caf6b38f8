package dns

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLookup struct {
	addrs []net.IPAddr
	err   error
}

func (s staticLookup) LookupIPAddr(_ context.Context, _ string) ([]net.IPAddr, error) {
	return s.addrs, s.err
}

func TestResolver_KeepsOnlyIPv4(t *testing.T) {
	r := &Resolver{resolver: staticLookup{addrs: []net.IPAddr{
		{IP: net.ParseIP("2001:db8::1")},
		{IP: net.ParseIP("203.0.113.10")},
	}}}

	input := r.Resolve(context.Background(), "gitlab.example.com")

	assert.Equal(t, "gitlab.example.com", input.Hostname)
	require.Len(t, input.ARecords, 1)
	assert.Equal(t, "203.0.113.10", input.ARecords[0].String())
	assert.Empty(t, input.LookupError)
}

func TestResolver_NoARecords(t *testing.T) {
	r := &Resolver{resolver: staticLookup{addrs: []net.IPAddr{{IP: net.ParseIP("2001:db8::1")}}}}

	input := r.Resolve(context.Background(), "gitlab.example.com")

	assert.Empty(t, input.ARecords)
	assert.Equal(t, "no A records found for gitlab.example.com", input.LookupError)
}

func TestResolver_LookupError(t *testing.T) {
	r := &Resolver{resolver: staticLookup{err: errors.New("no such host")}}

	input := r.Resolve(context.Background(), "missing.example.com")

	assert.Empty(t, input.ARecords)
	assert.Equal(t, "no such host", input.LookupError)
}

func TestResolver_Localhost(t *testing.T) {
	input := NewResolver().Resolve(context.Background(), "localhost")
	if input.LookupError != "" {
		t.Skipf("localhost does not resolve here: %s", input.LookupError)
	}

	for _, ip := range input.ARecords {
		assert.NotNil(t, ip.To4(), ip.String())
	}
}
