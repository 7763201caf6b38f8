package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artpar/gitlabstack/internal/core/domain"
)

// =============================================================================
// Credential Validation Tests
// =============================================================================

func TestValidateAWSCredentials(t *testing.T) {
	assert.NoError(t, ValidateAWSCredentials(AWSCredentials{AccessKeyID: "AKIA", SecretAccessKey: "secret"}))
	assert.ErrorIs(t, ValidateAWSCredentials(AWSCredentials{SecretAccessKey: "secret"}), ErrAWSAccessKeyRequired)
	assert.ErrorIs(t, ValidateAWSCredentials(AWSCredentials{AccessKeyID: "AKIA"}), ErrAWSSecretKeyRequired)
}

// =============================================================================
// Preflight Tests
// =============================================================================

func preflightSettings() domain.Settings {
	return domain.Settings{
		VPCID:        "vpc-12345678",
		AMIID:        "ami-12345678",
		InstanceType: "t3.medium",
		Architecture: domain.ArchX86_64,
	}
}

func TestPreflight_AllGood(t *testing.T) {
	result := Preflight(PreflightInput{
		Settings: preflightSettings(),
		Image:    ImageInfo{ImageID: "ami-12345678", Found: true, Architecture: "x86_64", State: "available"},
		VPC:      VPCInfo{VPCID: "vpc-12345678", Found: true, PublicSubnetID: "subnet-1"},
	})

	assert.True(t, result.OK())
	assert.Empty(t, result.Warnings)
}

func TestPreflight_MissingResources(t *testing.T) {
	result := Preflight(PreflightInput{Settings: preflightSettings()})

	assert.False(t, result.OK())
	assert.Equal(t, []string{"VPC vpc-12345678 not found", "image ami-12345678 not found"}, result.Problems)
}

func TestPreflight_ImageArchitectureMismatch(t *testing.T) {
	result := Preflight(PreflightInput{
		Settings: preflightSettings(),
		Image:    ImageInfo{Found: true, Architecture: "arm64", State: "available"},
		VPC:      VPCInfo{Found: true, PublicSubnetID: "subnet-1"},
	})

	assert.False(t, result.OK())
	assert.Equal(t, []string{"image ami-12345678 is arm64 but ARCHITECTURE is x86_64"}, result.Problems)
}

func TestPreflight_NoPublicSubnetIsFineWhenSubnetConfigured(t *testing.T) {
	s := preflightSettings()
	s.SubnetID = "subnet-configured"

	result := Preflight(PreflightInput{
		Settings: s,
		Image:    ImageInfo{Found: true, Architecture: "x86_64"},
		VPC:      VPCInfo{Found: true},
	})

	assert.True(t, result.OK())
}

func TestPreflight_InstanceTypeMismatchIsWarning(t *testing.T) {
	s := preflightSettings()
	s.InstanceType = "t4g.medium"

	result := Preflight(PreflightInput{
		Settings: s,
		Image:    ImageInfo{Found: true, Architecture: "x86_64", State: "available"},
		VPC:      VPCInfo{Found: true, PublicSubnetID: "subnet-1"},
	})

	assert.True(t, result.OK())
	assert.Equal(t, []string{"instance type t4g.medium is arm64 but ARCHITECTURE is x86_64"}, result.Warnings)
}

func TestPreflight_RegionNotEnabled(t *testing.T) {
	in := PreflightInput{
		Settings: preflightSettings(),
		Region:   "ap-east-1",
		Regions:  AWSRegions(),
		Image:    ImageInfo{Found: true, Architecture: "x86_64", State: "available"},
		VPC:      VPCInfo{Found: true, PublicSubnetID: "subnet-1"},
	}

	result := Preflight(in)
	assert.Equal(t, []string{"region ap-east-1 is not enabled for this account"}, result.Problems)

	in.Region = "ap-northeast-1"
	assert.True(t, Preflight(in).OK())
}

func TestArchitectureMismatch_UnknownTypeIsSilent(t *testing.T) {
	assert.Empty(t, ArchitectureMismatch("custom", domain.ArchARM64))
	assert.Empty(t, ArchitectureMismatch("t4g.large", domain.ArchARM64))
}
