// Package provider contains pure functions for cloud provider logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package provider

import (
	"regexp"
	"strings"

	"github.com/artpar/gitlabstack/internal/core/domain"
)

// Region represents a cloud provider region.
type Region struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// InstanceSize represents an instance type option.
type InstanceSize struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Architecture domain.Architecture `json:"architecture"`
	CPUCores     float64             `json:"cpu_cores"`
	MemoryMB     int64               `json:"memory_mb"`
}

// =============================================================================
// AWS EC2 Catalog
// =============================================================================

// AWSRegions returns the commonly used AWS regions.
func AWSRegions() []Region {
	return []Region{
		{ID: "us-east-1", Name: "US East (N. Virginia)", Available: true},
		{ID: "us-east-2", Name: "US East (Ohio)", Available: true},
		{ID: "us-west-1", Name: "US West (N. California)", Available: true},
		{ID: "us-west-2", Name: "US West (Oregon)", Available: true},
		{ID: "eu-west-1", Name: "EU (Ireland)", Available: true},
		{ID: "eu-west-2", Name: "EU (London)", Available: true},
		{ID: "eu-central-1", Name: "EU (Frankfurt)", Available: true},
		{ID: "ap-southeast-1", Name: "Asia Pacific (Singapore)", Available: true},
		{ID: "ap-northeast-1", Name: "Asia Pacific (Tokyo)", Available: true},
	}
}

// AWSSizes returns EC2 instance types suitable for a GitLab server.
// GitLab needs at least 4 GB of memory, so smaller types are omitted.
func AWSSizes() []InstanceSize {
	return []InstanceSize{
		{ID: "t3.medium", Name: "t3.medium (2 vCPU, 4 GB)", Architecture: domain.ArchX86_64, CPUCores: 2, MemoryMB: 4096},
		{ID: "t3.large", Name: "t3.large (2 vCPU, 8 GB)", Architecture: domain.ArchX86_64, CPUCores: 2, MemoryMB: 8192},
		{ID: "t3.xlarge", Name: "t3.xlarge (4 vCPU, 16 GB)", Architecture: domain.ArchX86_64, CPUCores: 4, MemoryMB: 16384},
		{ID: "m6i.large", Name: "m6i.large (2 vCPU, 8 GB)", Architecture: domain.ArchX86_64, CPUCores: 2, MemoryMB: 8192},
		{ID: "t4g.medium", Name: "t4g.medium (2 vCPU, 4 GB)", Architecture: domain.ArchARM64, CPUCores: 2, MemoryMB: 4096},
		{ID: "t4g.large", Name: "t4g.large (2 vCPU, 8 GB)", Architecture: domain.ArchARM64, CPUCores: 2, MemoryMB: 8192},
		{ID: "t4g.xlarge", Name: "t4g.xlarge (4 vCPU, 16 GB)", Architecture: domain.ArchARM64, CPUCores: 4, MemoryMB: 16384},
		{ID: "m7g.large", Name: "m7g.large (2 vCPU, 8 GB)", Architecture: domain.ArchARM64, CPUCores: 2, MemoryMB: 8192},
	}
}

// LookupSize returns the InstanceSize for a given instance type, or nil if not found.
func LookupSize(sizeID string) *InstanceSize {
	for _, s := range AWSSizes() {
		if s.ID == sizeID {
			return &s
		}
	}
	return nil
}

// =============================================================================
// Architecture Helpers
// =============================================================================

// gravitonFamily matches instance families built on Graviton (arm64) CPUs,
// e.g. t4g, m7g, c6gn, r8g, x2gd, a1.
var gravitonFamily = regexp.MustCompile(`^([a-z]+[0-9]+g[a-z]*|a1)$`)

// InstanceArchitecture returns the CPU architecture of an EC2 instance type.
// Known types come from the catalog; unknown types are classified by family.
// ok is false when the type is malformed.
func InstanceArchitecture(instanceType string) (arch domain.Architecture, ok bool) {
	if s := LookupSize(instanceType); s != nil {
		return s.Architecture, true
	}
	family, _, found := strings.Cut(instanceType, ".")
	if !found || family == "" {
		return "", false
	}
	if gravitonFamily.MatchString(family) {
		return domain.ArchARM64, true
	}
	return domain.ArchX86_64, true
}

// AWSCLIDownloadURL returns the AWS CLI v2 installer for an architecture.
func AWSCLIDownloadURL(arch domain.Architecture) string {
	if arch == domain.ArchARM64 {
		return "https://awscli.amazonaws.com/awscli-exe-linux-aarch64.zip"
	}
	return "https://awscli.amazonaws.com/awscli-exe-linux-x86_64.zip"
}

// ImageArchitecture maps an EC2 image architecture value ("x86_64",
// "arm64", "i386", ...) to a domain architecture. ok is false for
// architectures GitLab images are not built for.
func ImageArchitecture(value string) (domain.Architecture, bool) {
	arch := domain.Architecture(value)
	return arch, arch.IsValid()
}

// =============================================================================
// Region Helpers
// =============================================================================

var regionRegex = regexp.MustCompile(`^[a-z]{2}(-gov)?-[a-z]+-[0-9]$`)

// ValidRegion reports whether region looks like an AWS region code.
func ValidRegion(region string) bool {
	return regionRegex.MatchString(region)
}
