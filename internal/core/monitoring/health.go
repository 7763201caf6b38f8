// Package monitoring provides pure functions for judging whether a deployed
// GitLab instance is serving.
// This is part of the Functional Core - all functions are pure with no I/O.
package monitoring

import (
	"fmt"
	"net/http"

	"github.com/artpar/gitlabstack/internal/core/bootstrap"
)

// =============================================================================
// Health Status
// =============================================================================

// HealthStatus is the health of one probe or of the whole instance.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// =============================================================================
// Probes
// =============================================================================

// Probe is an HTTP endpoint polled from outside the instance.
type Probe struct {
	Name string
	URL  string

	// Accept lists status codes that mean the endpoint is serving.
	Accept []int
}

// Probes returns the endpoints of a deployed instance: the GitLab health
// endpoint and the container registry API root.
//
// Example:
//
//	Probes("gitlab.example.com")[0].URL
//	// "https://gitlab.example.com/-/health"
func Probes(domainName string) []Probe {
	return []Probe{
		{
			Name:   "gitlab",
			URL:    bootstrap.ServiceURL(domainName) + "/-/health",
			Accept: []int{http.StatusOK},
		},
		{
			// The registry answers 401 to anonymous clients once it is up.
			Name:   "registry",
			URL:    bootstrap.RegistryURL(domainName) + "/v2/",
			Accept: []int{http.StatusOK, http.StatusUnauthorized},
		},
	}
}

// ProbeResult is what the shell observed when polling a probe.
type ProbeResult struct {
	Probe      Probe
	StatusCode int
	Error      string
}

// EvaluateProbe maps a probe result to a health status. Gateway errors mean
// nginx is up while GitLab is still starting, so they count as degraded.
func EvaluateProbe(r ProbeResult) HealthStatus {
	if r.Error != "" {
		return HealthStatusUnhealthy
	}
	for _, code := range r.Probe.Accept {
		if r.StatusCode == code {
			return HealthStatusHealthy
		}
	}
	switch r.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return HealthStatusDegraded
	case 0:
		return HealthStatusUnknown
	}
	return HealthStatusUnhealthy
}

// AggregateHealth determines overall health from probe statuses.
func AggregateHealth(statuses []HealthStatus) HealthStatus {
	if len(statuses) == 0 {
		return HealthStatusUnknown
	}

	unhealthy := 0
	degraded := 0

	for _, s := range statuses {
		switch s {
		case HealthStatusUnhealthy:
			unhealthy++
		case HealthStatusDegraded, HealthStatusUnknown:
			degraded++
		}
	}

	// All unhealthy = unhealthy
	if unhealthy == len(statuses) {
		return HealthStatusUnhealthy
	}
	// Any unhealthy or degraded = degraded
	if unhealthy > 0 || degraded > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}

// ProbeMessage generates a human-readable line for a probe result.
func ProbeMessage(r ProbeResult) string {
	status := EvaluateProbe(r)
	if r.Error != "" {
		return fmt.Sprintf("%s %s: %s", r.Probe.Name, status, r.Error)
	}
	return fmt.Sprintf("%s %s: HTTP %d from %s", r.Probe.Name, status, r.StatusCode, r.Probe.URL)
}
