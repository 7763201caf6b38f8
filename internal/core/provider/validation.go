package provider

import (
	"errors"
	"fmt"

	"github.com/artpar/gitlabstack/internal/core/domain"
)

// =============================================================================
// Credential Validation (Pure - no I/O)
// =============================================================================

var (
	ErrAWSAccessKeyRequired = errors.New("AWS access key ID is required")
	ErrAWSSecretKeyRequired = errors.New("AWS secret access key is required")
)

// AWSCredentials represents AWS access credentials.
type AWSCredentials struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

// ValidateAWSCredentials validates AWS credential fields.
func ValidateAWSCredentials(creds AWSCredentials) error {
	if creds.AccessKeyID == "" {
		return ErrAWSAccessKeyRequired
	}
	if creds.SecretAccessKey == "" {
		return ErrAWSSecretKeyRequired
	}
	return nil
}

// =============================================================================
// Preflight Checks (Pure - lookups are done by the shell)
// =============================================================================

// ImageInfo is what the shell learned about a machine image.
type ImageInfo struct {
	ImageID      string
	Found        bool
	Architecture string
	State        string
}

// VPCInfo is what the shell learned about the target VPC.
type VPCInfo struct {
	VPCID          string
	Found          bool
	PublicSubnetID string
}

// PreflightInput collects every lookup result the preflight check needs.
// Region is the deployment target and Regions the regions enabled for the
// account; the region check is skipped when either is empty.
type PreflightInput struct {
	Settings domain.Settings
	Region   string
	Regions  []Region
	Image    ImageInfo
	VPC      VPCInfo
}

// PreflightResult lists problems that would make the deployment fail and
// warnings that would not.
type PreflightResult struct {
	Problems []string
	Warnings []string
}

// OK reports whether no blocking problem was found.
func (r PreflightResult) OK() bool { return len(r.Problems) == 0 }

// Preflight checks the looked-up state of the target account against the
// validated settings.
//
// Example:
//
//	result := Preflight(PreflightInput{Settings: s, Image: img, VPC: vpc})
//	if !result.OK() {
//	    // report result.Problems
//	}
func Preflight(in PreflightInput) PreflightResult {
	var result PreflightResult

	if in.Region != "" && len(in.Regions) > 0 && !regionListed(in.Regions, in.Region) {
		result.Problems = append(result.Problems, fmt.Sprintf("region %s is not enabled for this account", in.Region))
	}

	if !in.VPC.Found {
		result.Problems = append(result.Problems, fmt.Sprintf("VPC %s not found", in.Settings.VPCID))
	} else if in.Settings.SubnetID == "" && in.VPC.PublicSubnetID == "" {
		result.Problems = append(result.Problems, fmt.Sprintf("VPC %s has no public subnet", in.Settings.VPCID))
	}

	if !in.Image.Found {
		result.Problems = append(result.Problems, fmt.Sprintf("image %s not found", in.Settings.AMIID))
	} else {
		imageArch, ok := ImageArchitecture(in.Image.Architecture)
		switch {
		case !ok:
			result.Problems = append(result.Problems,
				fmt.Sprintf("image %s has unsupported architecture %q", in.Settings.AMIID, in.Image.Architecture))
		case imageArch != in.Settings.Architecture:
			result.Problems = append(result.Problems,
				fmt.Sprintf("image %s is %s but ARCHITECTURE is %s", in.Settings.AMIID, imageArch, in.Settings.Architecture))
		}
		if in.Image.State != "" && in.Image.State != "available" {
			result.Problems = append(result.Problems,
				fmt.Sprintf("image %s is %s, not available", in.Settings.AMIID, in.Image.State))
		}
	}

	if warning := ArchitectureMismatch(in.Settings.InstanceType, in.Settings.Architecture); warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}

	return result
}

func regionListed(regions []Region, id string) bool {
	for _, r := range regions {
		if r.ID == id && r.Available {
			return true
		}
	}
	return false
}

// ArchitectureMismatch returns a warning when the instance type's CPU
// architecture differs from the declared one, or "" when they agree or the
// type cannot be classified.
func ArchitectureMismatch(instanceType string, declared domain.Architecture) string {
	arch, ok := InstanceArchitecture(instanceType)
	if !ok || arch == declared {
		return ""
	}
	return fmt.Sprintf("instance type %s is %s but ARCHITECTURE is %s", instanceType, arch, declared)
}
