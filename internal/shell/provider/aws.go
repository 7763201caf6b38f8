package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	smithy "github.com/aws/smithy-go"

	coreprovider "github.com/artpar/gitlabstack/internal/core/provider"
)

// EC2API is the subset of the EC2 client the inspector calls.
type EC2API interface {
	DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(ctx context.Context, in *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeImages(ctx context.Context, in *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	DescribeRegions(ctx context.Context, in *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// AWSInspector implements Inspector for AWS EC2.
type AWSInspector struct {
	client EC2API
	logger *slog.Logger
}

// NewAWSInspector creates an inspector for region using static credentials.
func NewAWSInspector(creds coreprovider.AWSCredentials, region string, logger *slog.Logger) (*AWSInspector, error) {
	if err := coreprovider.ValidateAWSCredentials(creds); err != nil {
		return nil, err
	}
	client := ec2.New(ec2.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
	})
	return NewAWSInspectorWithClient(client, logger.With("region", region)), nil
}

// NewAWSInspectorWithClient creates an inspector around an existing client.
func NewAWSInspectorWithClient(client EC2API, logger *slog.Logger) *AWSInspector {
	return &AWSInspector{
		client: client,
		logger: logger.With("provider", "aws"),
	}
}

// LookupVPC describes the VPC and picks the first subnet that maps public
// IPs on launch.
func (p *AWSInspector) LookupVPC(ctx context.Context, vpcID string) (coreprovider.VPCInfo, error) {
	info := coreprovider.VPCInfo{VPCID: vpcID}

	out, err := p.client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}})
	if err != nil {
		if isNotFound(err) {
			p.logger.Info("VPC not found", "vpc_id", vpcID)
			return info, nil
		}
		return info, fmt.Errorf("failed to describe VPC %s: %w", vpcID, err)
	}
	if len(out.Vpcs) == 0 {
		return info, nil
	}
	info.Found = true

	subnets, err := p.client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return info, fmt.Errorf("failed to describe subnets of %s: %w", vpcID, err)
	}
	for _, s := range subnets.Subnets {
		if aws.ToBool(s.MapPublicIpOnLaunch) {
			info.PublicSubnetID = aws.ToString(s.SubnetId)
			break
		}
	}

	p.logger.Debug("VPC looked up", "vpc_id", vpcID, "public_subnet", info.PublicSubnetID)
	return info, nil
}

// LookupImage describes the machine image.
func (p *AWSInspector) LookupImage(ctx context.Context, imageID string) (coreprovider.ImageInfo, error) {
	info := coreprovider.ImageInfo{ImageID: imageID}

	out, err := p.client.DescribeImages(ctx, &ec2.DescribeImagesInput{ImageIds: []string{imageID}})
	if err != nil {
		if isNotFound(err) {
			p.logger.Info("image not found", "image_id", imageID)
			return info, nil
		}
		return info, fmt.Errorf("failed to describe image %s: %w", imageID, err)
	}
	if len(out.Images) == 0 {
		return info, nil
	}

	img := out.Images[0]
	info.Found = true
	info.Architecture = string(img.Architecture)
	info.State = string(img.State)

	p.logger.Debug("image looked up", "image_id", imageID, "architecture", info.Architecture, "state", info.State)
	return info, nil
}

// ListRegions returns available AWS regions.
func (p *AWSInspector) ListRegions(ctx context.Context) ([]coreprovider.Region, error) {
	out, err := p.client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("opt-in-status"), Values: []string{"opt-in-not-required", "opted-in"}},
		},
	})
	if err != nil {
		p.logger.Warn("failed to list regions, using static catalog", "error", err)
		return coreprovider.AWSRegions(), nil
	}

	regions := make([]coreprovider.Region, 0, len(out.Regions))
	for _, r := range out.Regions {
		regions = append(regions, coreprovider.Region{
			ID:        aws.ToString(r.RegionName),
			Name:      aws.ToString(r.RegionName),
			Available: true,
		})
	}
	return regions, nil
}

// isNotFound reports whether err is an EC2 "does not exist" error, e.g.
// InvalidVpcID.NotFound or InvalidAMIID.Malformed.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return strings.HasSuffix(code, ".NotFound") || strings.HasSuffix(code, ".Malformed")
}
