package vpc

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type VPCAPI interface {
	DescribeSubnets(ctx context.Context, params *awsec2.DescribeSubnetsInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeSubnetsOutput, error)
}

type Client struct {
	api VPCAPI
}

func NewClient(api VPCAPI) *Client {
	return &Client{api: api}
}

func nameFromTags(tags []types.Tag) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == "Name" {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}

// DescribeSubnets returns the subnets with the given IDs.
func (c *Client) DescribeSubnets(ctx context.Context, subnetIDs []string) ([]SubnetInfo, error) {
	if len(subnetIDs) == 0 {
		return nil, nil
	}

	var subnets []SubnetInfo
	var nextToken *string

	for {
		out, err := c.api.DescribeSubnets(ctx, &awsec2.DescribeSubnetsInput{
			SubnetIds: subnetIDs,
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeSubnets: %w", err)
		}

		for _, s := range out.Subnets {
			subnets = append(subnets, SubnetInfo{
				SubnetID:     aws.ToString(s.SubnetId),
				Name:         nameFromTags(s.Tags),
				VPCID:        aws.ToString(s.VpcId),
				CIDR:         aws.ToString(s.CidrBlock),
				AZ:           aws.ToString(s.AvailabilityZone),
				AZID:         aws.ToString(s.AvailabilityZoneId),
				AvailableIPs: int(aws.ToInt32(s.AvailableIpAddressCount)),
			})
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return subnets, nil
}

// SubnetZones maps each subnet ID to its availability zone.
func (c *Client) SubnetZones(ctx context.Context, subnetIDs []string) (map[string]string, error) {
	subnets, err := c.DescribeSubnets(ctx, subnetIDs)
	if err != nil {
		return nil, err
	}
	zones := make(map[string]string, len(subnets))
	for _, s := range subnets {
		zones[s.SubnetID] = s.AZ
	}
	return zones, nil
}

// DistinctZones returns the sorted set of zones in a SubnetZones result.
func DistinctZones(zones map[string]string) []string {
	seen := make(map[string]struct{}, len(zones))
	var out []string
	for _, z := range zones {
		if z == "" {
			continue
		}
		if _, ok := seen[z]; ok {
			continue
		}
		seen[z] = struct{}{}
		out = append(out, z)
	}
	sort.Strings(out)
	return out
}
