// Package workers contains polling workers that run against a deployed
// instance.
package workers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	coredns "github.com/artpar/gitlabstack/internal/core/dns"
	"github.com/artpar/gitlabstack/internal/core/monitoring"
)

// Resolver looks up the A records of a hostname.
type Resolver interface {
	Resolve(ctx context.Context, hostname string) coredns.VerificationInput
}

// ReadinessConfig configures the readiness waiter.
type ReadinessConfig struct {
	// Hostname is the GitLab domain name.
	Hostname string

	// ExpectedIP is the Elastic IP. When empty, DNS is not checked.
	ExpectedIP string

	// Interval is the time between checks.
	// Default: 30 seconds.
	Interval time.Duration

	// ProbeTimeout bounds a single HTTP probe.
	// Default: 10 seconds.
	ProbeTimeout time.Duration
}

// DefaultReadinessConfig returns the default configuration.
func DefaultReadinessConfig() ReadinessConfig {
	return ReadinessConfig{
		Interval:     30 * time.Second,
		ProbeTimeout: 10 * time.Second,
	}
}

// ReadinessReport is the outcome of one check.
type ReadinessReport struct {
	DNS    coredns.VerificationResult
	Probes []monitoring.ProbeResult
	Health monitoring.HealthStatus
}

// Ready reports whether DNS points at the instance and every probe is
// healthy.
func (r ReadinessReport) Ready() bool {
	return r.DNS.Verified && r.Health == monitoring.HealthStatusHealthy
}

// ReadinessWaiter polls DNS and the HTTP probes of a freshly deployed
// instance until it serves traffic.
type ReadinessWaiter struct {
	resolver Resolver
	client   *http.Client
	probes   []monitoring.Probe
	config   ReadinessConfig
	logger   *slog.Logger
}

// NewReadinessWaiter creates a readiness waiter.
func NewReadinessWaiter(
	resolver Resolver,
	client *http.Client,
	probes []monitoring.Probe,
	config ReadinessConfig,
	logger *slog.Logger,
) *ReadinessWaiter {
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.ProbeTimeout == 0 {
		config.ProbeTimeout = 10 * time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ReadinessWaiter{
		resolver: resolver,
		client:   client,
		probes:   probes,
		config:   config,
		logger:   logger.With("component", "readiness", "hostname", config.Hostname),
	}
}

// Wait checks until the instance is ready or ctx ends. It returns the last
// report either way, and ctx.Err() when it gave up.
func (w *ReadinessWaiter) Wait(ctx context.Context) (ReadinessReport, error) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		report := w.Check(ctx)
		if report.Ready() {
			w.logger.Info("instance is ready")
			return report, nil
		}
		w.logger.Info("instance not ready yet",
			"dns_verified", report.DNS.Verified,
			"dns_error", report.DNS.Error,
			"health", report.Health,
		)

		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check runs DNS verification and every probe once. Probes run
// concurrently.
func (w *ReadinessWaiter) Check(ctx context.Context) ReadinessReport {
	var report ReadinessReport

	if w.config.ExpectedIP == "" {
		report.DNS = coredns.VerificationResult{Verified: true}
	} else {
		input := w.resolver.Resolve(ctx, w.config.Hostname)
		report.DNS = coredns.Verify(input, w.config.ExpectedIP)
	}

	report.Probes = make([]monitoring.ProbeResult, len(w.probes))
	var wg sync.WaitGroup
	for i, p := range w.probes {
		wg.Add(1)
		go func(i int, p monitoring.Probe) {
			defer wg.Done()
			report.Probes[i] = w.probe(ctx, p)
		}(i, p)
	}
	wg.Wait()

	statuses := make([]monitoring.HealthStatus, len(report.Probes))
	for i, r := range report.Probes {
		statuses[i] = monitoring.EvaluateProbe(r)
		w.logger.Debug(monitoring.ProbeMessage(r))
	}
	report.Health = monitoring.AggregateHealth(statuses)

	return report
}

func (w *ReadinessWaiter) probe(ctx context.Context, p monitoring.Probe) monitoring.ProbeResult {
	result := monitoring.ProbeResult{Probe: p}

	ctx, cancel := context.WithTimeout(ctx, w.config.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	resp, err := w.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	resp.Body.Close()

	result.StatusCode = resp.StatusCode
	return result
}
