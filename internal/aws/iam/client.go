package iam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
)

const (
	eksServicePrincipal = "eks.amazonaws.com"
	clusterPolicyName   = "AmazonEKSClusterPolicy"
)

type IAMAPI interface {
	GetRole(ctx context.Context, params *awsiam.GetRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *awsiam.ListAttachedRolePoliciesInput, optFns ...func(*awsiam.Options)) (*awsiam.ListAttachedRolePoliciesOutput, error)
}

type Client struct {
	api IAMAPI
}

func NewClient(api IAMAPI) *Client {
	return &Client{api: api}
}

func (c *Client) GetRole(ctx context.Context, name string) (IAMRole, error) {
	out, err := c.api.GetRole(ctx, &awsiam.GetRoleInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		return IAMRole{}, fmt.Errorf("GetRole(%s): %w", name, err)
	}
	if out.Role == nil {
		return IAMRole{}, fmt.Errorf("GetRole(%s): empty response", name)
	}

	r := out.Role
	var createdAt time.Time
	if r.CreateDate != nil {
		createdAt = *r.CreateDate
	}

	policyDoc := aws.ToString(r.AssumeRolePolicyDocument)
	if decoded, err := url.QueryUnescape(policyDoc); err == nil {
		policyDoc = decoded
	}

	return IAMRole{
		Name:                     aws.ToString(r.RoleName),
		RoleID:                   aws.ToString(r.RoleId),
		ARN:                      aws.ToString(r.Arn),
		Path:                     aws.ToString(r.Path),
		Description:              aws.ToString(r.Description),
		CreatedAt:                createdAt,
		AssumeRolePolicyDocument: policyDoc,
	}, nil
}

// ResolveRoleARN returns nameOrARN unchanged when it is already an ARN,
// otherwise looks the role up by name.
func (c *Client) ResolveRoleARN(ctx context.Context, nameOrARN string) (string, error) {
	if nameOrARN == "" {
		return "", fmt.Errorf("role name is required")
	}
	if strings.HasPrefix(nameOrARN, "arn:") {
		return nameOrARN, nil
	}
	role, err := c.GetRole(ctx, roleNameFromPath(nameOrARN))
	if err != nil {
		return "", err
	}
	return role.ARN, nil
}

func (c *Client) ListAttachedRolePolicies(ctx context.Context, roleName string) ([]IAMAttachedPolicy, error) {
	var policies []IAMAttachedPolicy
	var marker *string

	for {
		out, err := c.api.ListAttachedRolePolicies(ctx, &awsiam.ListAttachedRolePoliciesInput{
			RoleName: aws.String(roleName),
			Marker:   marker,
		})
		if err != nil {
			return nil, fmt.Errorf("ListAttachedRolePolicies(%s): %w", roleName, err)
		}

		for _, p := range out.AttachedPolicies {
			policies = append(policies, IAMAttachedPolicy{
				Name: aws.ToString(p.PolicyName),
				ARN:  aws.ToString(p.PolicyArn),
			})
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return policies, nil
}

// CheckClusterRole inspects a role's trust policy and attachments.
func (c *Client) CheckClusterRole(ctx context.Context, nameOrARN string) (RoleCheck, error) {
	name := roleNameFromPath(nameOrARN)
	role, err := c.GetRole(ctx, name)
	if err != nil {
		return RoleCheck{}, err
	}
	policies, err := c.ListAttachedRolePolicies(ctx, name)
	if err != nil {
		return RoleCheck{}, err
	}

	check := RoleCheck{
		Role:      role,
		TrustsEKS: trustsService(role.AssumeRolePolicyDocument, eksServicePrincipal),
	}
	for _, p := range policies {
		if p.Name == clusterPolicyName {
			check.HasClusterPolicy = true
			break
		}
	}
	return check, nil
}

// roleNameFromPath strips an ARN prefix and any path, leaving the bare name.
func roleNameFromPath(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

type trustPolicy struct {
	Statement []struct {
		Effect    string `json:"Effect"`
		Principal struct {
			Service json.RawMessage `json:"Service"`
		} `json:"Principal"`
	} `json:"Statement"`
}

func trustsService(doc, service string) bool {
	var p trustPolicy
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return false
	}
	for _, st := range p.Statement {
		if st.Effect != "Allow" || len(st.Principal.Service) == 0 {
			continue
		}
		var one string
		if err := json.Unmarshal(st.Principal.Service, &one); err == nil {
			if one == service {
				return true
			}
			continue
		}
		var many []string
		if err := json.Unmarshal(st.Principal.Service, &many); err == nil {
			for _, s := range many {
				if s == service {
					return true
				}
			}
		}
	}
	return false
}
