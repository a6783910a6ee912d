package eks

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseks "github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
)

type EKSAPI interface {
	ListClusters(ctx context.Context, params *awseks.ListClustersInput, optFns ...func(*awseks.Options)) (*awseks.ListClustersOutput, error)
	DescribeCluster(ctx context.Context, params *awseks.DescribeClusterInput, optFns ...func(*awseks.Options)) (*awseks.DescribeClusterOutput, error)
	CreateCluster(ctx context.Context, params *awseks.CreateClusterInput, optFns ...func(*awseks.Options)) (*awseks.CreateClusterOutput, error)
	DeleteCluster(ctx context.Context, params *awseks.DeleteClusterInput, optFns ...func(*awseks.Options)) (*awseks.DeleteClusterOutput, error)
	ListNodegroups(ctx context.Context, params *awseks.ListNodegroupsInput, optFns ...func(*awseks.Options)) (*awseks.ListNodegroupsOutput, error)
	ListFargateProfiles(ctx context.Context, params *awseks.ListFargateProfilesInput, optFns ...func(*awseks.Options)) (*awseks.ListFargateProfilesOutput, error)
}

type Client struct {
	api EKSAPI
}

func NewClient(api EKSAPI) *Client {
	return &Client{api: api}
}

// ListClusterNames returns every cluster name in the region.
func (c *Client) ListClusterNames(ctx context.Context) ([]string, error) {
	var names []string
	var nextToken *string

	for {
		out, err := c.api.ListClusters(ctx, &awseks.ListClustersInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("ListClusters: %w", err)
		}

		names = append(names, out.Clusters...)

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return names, nil
}

// DescribeCluster fetches a fresh snapshot of the named cluster. A missing
// cluster yields an error matching ErrClusterNotFound.
func (c *Client) DescribeCluster(ctx context.Context, name string) (EKSCluster, error) {
	out, err := c.api.DescribeCluster(ctx, &awseks.DescribeClusterInput{
		Name: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return EKSCluster{}, fmt.Errorf("DescribeCluster(%s): %w: %w", name, ErrClusterNotFound, err)
		}
		return EKSCluster{}, fmt.Errorf("DescribeCluster(%s): %w", name, err)
	}
	if out.Cluster == nil {
		return EKSCluster{}, fmt.Errorf("DescribeCluster(%s): %w", name, ErrClusterNotFound)
	}

	return clusterFromAPI(out.Cluster), nil
}

// CreateCluster submits the create request and returns the cluster as first
// reported by the provider (normally in CREATING status).
func (c *Client) CreateCluster(ctx context.Context, params CreateParams) (EKSCluster, error) {
	input := &awseks.CreateClusterInput{
		Name:    aws.String(params.Name),
		RoleArn: aws.String(params.RoleARN),
		ResourcesVpcConfig: &ekstypes.VpcConfigRequest{
			SubnetIds:             params.ResourcesVpcConfig.SubnetIDs,
			SecurityGroupIds:      params.ResourcesVpcConfig.SecurityGroupIDs,
			EndpointPublicAccess:  params.ResourcesVpcConfig.EndpointPublicAccess,
			EndpointPrivateAccess: params.ResourcesVpcConfig.EndpointPrivateAccess,
		},
		Tags: params.Tags,
	}
	if params.Version != "" {
		input.Version = aws.String(params.Version)
	}
	if params.Logging != nil && len(params.Logging.Types) > 0 {
		types := make([]ekstypes.LogType, 0, len(params.Logging.Types))
		for _, t := range params.Logging.Types {
			types = append(types, ekstypes.LogType(t))
		}
		input.Logging = &ekstypes.Logging{
			ClusterLogging: []ekstypes.LogSetup{{
				Types:   types,
				Enabled: aws.Bool(params.Logging.Enabled),
			}},
		}
	}

	out, err := c.api.CreateCluster(ctx, input)
	if err != nil {
		return EKSCluster{}, fmt.Errorf("CreateCluster(%s): %w", params.Name, err)
	}
	if out.Cluster == nil {
		return EKSCluster{Name: params.Name, Status: StatusCreating}, nil
	}
	return clusterFromAPI(out.Cluster), nil
}

// DeleteCluster requests deletion. Completion is observed with a Waiter.
func (c *Client) DeleteCluster(ctx context.Context, name string) error {
	_, err := c.api.DeleteCluster(ctx, &awseks.DeleteClusterInput{
		Name: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("DeleteCluster(%s): %w: %w", name, ErrClusterNotFound, err)
		}
		return fmt.Errorf("DeleteCluster(%s): %w", name, err)
	}
	return nil
}

func (c *Client) ListNodegroupNames(ctx context.Context, clusterName string) ([]string, error) {
	var names []string
	var nextToken *string

	for {
		out, err := c.api.ListNodegroups(ctx, &awseks.ListNodegroupsInput{
			ClusterName: aws.String(clusterName),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("ListNodegroups(%s): %w", clusterName, err)
		}

		names = append(names, out.Nodegroups...)

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return names, nil
}

func (c *Client) ListFargateProfileNames(ctx context.Context, clusterName string) ([]string, error) {
	var names []string
	var nextToken *string

	for {
		out, err := c.api.ListFargateProfiles(ctx, &awseks.ListFargateProfilesInput{
			ClusterName: aws.String(clusterName),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("ListFargateProfiles(%s): %w", clusterName, err)
		}

		names = append(names, out.FargateProfileNames...)

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return names, nil
}

func clusterFromAPI(cl *ekstypes.Cluster) EKSCluster {
	cluster := EKSCluster{
		Name:            aws.ToString(cl.Name),
		ARN:             aws.ToString(cl.Arn),
		Status:          string(cl.Status),
		Version:         aws.ToString(cl.Version),
		PlatformVersion: aws.ToString(cl.PlatformVersion),
		Endpoint:        aws.ToString(cl.Endpoint),
		RoleARN:         aws.ToString(cl.RoleArn),
		Tags:            cl.Tags,
	}

	if cl.CreatedAt != nil {
		cluster.CreatedAt = *cl.CreatedAt
	}
	if cl.CertificateAuthority != nil {
		cluster.CertAuthority = aws.ToString(cl.CertificateAuthority.Data)
	}
	if vpc := cl.ResourcesVpcConfig; vpc != nil {
		cluster.VPCID = aws.ToString(vpc.VpcId)
		cluster.SubnetIDs = vpc.SubnetIds
		cluster.SecurityGroupIDs = vpc.SecurityGroupIds
		cluster.EndpointPublic = vpc.EndpointPublicAccess
		cluster.EndpointPrivate = vpc.EndpointPrivateAccess
	}

	return cluster
}
