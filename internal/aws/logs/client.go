package logs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
)

// CloudWatchLogsAPI defines the subset of CloudWatch Logs API we use.
type CloudWatchLogsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	DeleteLogGroup(ctx context.Context, params *cloudwatchlogs.DeleteLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error)
}

// Client wraps the CloudWatch Logs API.
type Client struct {
	api CloudWatchLogsAPI
}

// NewClient creates a new logs client.
func NewClient(api CloudWatchLogsAPI) *Client {
	return &Client{api: api}
}

// ControlPlaneLogGroup is the log group EKS writes control plane logs to.
func ControlPlaneLogGroup(clusterName string) string {
	return "/aws/eks/" + clusterName + "/cluster"
}

// FindLogGroup returns the log group with exactly this name, or nil.
func (c *Client) FindLogGroup(ctx context.Context, name string) (*LogGroup, error) {
	var nextToken *string
	for {
		out, err := c.api.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
			LogGroupNamePrefix: aws.String(name),
			NextToken:          nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeLogGroups(%s): %w", name, err)
		}

		for _, g := range out.LogGroups {
			if aws.ToString(g.LogGroupName) != name {
				continue
			}
			return &LogGroup{
				Name:          name,
				ARN:           aws.ToString(g.Arn),
				RetentionDays: int(aws.ToInt32(g.RetentionInDays)),
				StoredBytes:   aws.ToInt64(g.StoredBytes),
				CreatedAt:     time.UnixMilli(aws.ToInt64(g.CreationTime)),
			}, nil
		}

		if out.NextToken == nil {
			return nil, nil
		}
		nextToken = out.NextToken
	}
}

// DeleteLogGroup removes a log group. It reports whether anything was
// deleted; a missing group is not an error.
func (c *Client) DeleteLogGroup(ctx context.Context, name string) (bool, error) {
	_, err := c.api.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("DeleteLogGroup(%s): %w", name, err)
	}
	return true, nil
}

func isNotFound(err error) bool {
	var rnf *cwltypes.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException"
}
