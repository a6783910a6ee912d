package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	awseks "github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	awss3sdk "github.com/aws/aws-sdk-go-v2/service/s3"

	"tasnim.dev/eks-lifecycle/internal/aws/eks"
	awsiam "tasnim.dev/eks-lifecycle/internal/aws/iam"
	awslogs "tasnim.dev/eks-lifecycle/internal/aws/logs"
	awss3 "tasnim.dev/eks-lifecycle/internal/aws/s3"
	awsvpc "tasnim.dev/eks-lifecycle/internal/aws/vpc"
)

type ServiceClient struct {
	Config sdkaws.Config
	Region string

	EKS    *eks.Client
	Issuer *eks.Issuer
	VPC    *awsvpc.Client
	IAM    *awsiam.Client
	S3     *awss3.Client
	Logs   *awslogs.Client
}

func NewServiceClient(ctx context.Context, profile, region string) (*ServiceClient, error) {
	cfg, err := LoadConfig(ctx, profile, region)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewServiceClientFromConfig(cfg), nil
}

// NewServiceClientFromConfig wires every service client to one signing identity.
func NewServiceClientFromConfig(cfg sdkaws.Config) *ServiceClient {
	return &ServiceClient{
		Config: cfg,
		Region: cfg.Region,
		EKS:    eks.NewClient(awseks.NewFromConfig(cfg)),
		Issuer: eks.NewIssuer(cfg),
		VPC:    awsvpc.NewClient(ec2.NewFromConfig(cfg)),
		IAM:    awsiam.NewClient(iam.NewFromConfig(cfg)),
		S3:     awss3.NewClient(awss3sdk.NewFromConfig(cfg)),
		Logs:   awslogs.NewClient(cloudwatchlogs.NewFromConfig(cfg)),
	}
}
