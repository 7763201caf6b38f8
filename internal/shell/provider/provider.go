// Package provider looks up the state of the target cloud account.
// This is part of the Imperative Shell - handles I/O with cloud APIs.
package provider

import (
	"context"

	"github.com/artpar/gitlabstack/internal/core/domain"
	coreprovider "github.com/artpar/gitlabstack/internal/core/provider"
)

// Inspector defines the read-only lookups the preflight check needs.
// Nothing here creates or modifies cloud resources.
type Inspector interface {
	// LookupVPC reports whether the VPC exists and which public subnet an
	// instance would land in.
	LookupVPC(ctx context.Context, vpcID string) (coreprovider.VPCInfo, error)

	// LookupImage reports whether the machine image exists and its CPU
	// architecture.
	LookupImage(ctx context.Context, imageID string) (coreprovider.ImageInfo, error)

	// ListRegions returns the regions enabled for the account.
	ListRegions(ctx context.Context) ([]coreprovider.Region, error)
}

// RunPreflight performs every lookup for s in region and checks the results.
func RunPreflight(ctx context.Context, insp Inspector, region string, s domain.Settings) (coreprovider.PreflightResult, error) {
	regions, err := insp.ListRegions(ctx)
	if err != nil {
		return coreprovider.PreflightResult{}, err
	}
	vpc, err := insp.LookupVPC(ctx, s.VPCID)
	if err != nil {
		return coreprovider.PreflightResult{}, err
	}
	image, err := insp.LookupImage(ctx, s.AMIID)
	if err != nil {
		return coreprovider.PreflightResult{}, err
	}
	return coreprovider.Preflight(coreprovider.PreflightInput{
		Settings: s,
		Region:   region,
		Regions:  regions,
		Image:    image,
		VPC:      vpc,
	}), nil
}
