package eks

import "time"

// Cluster status values as reported by DescribeCluster.
const (
	StatusCreating = "CREATING"
	StatusActive   = "ACTIVE"
	StatusUpdating = "UPDATING"
	StatusDeleting = "DELETING"
	StatusFailed   = "FAILED"
	StatusPending  = "PENDING"
)

// EKSCluster is a point-in-time snapshot of a cluster. It is never cached
// beyond a single describe call.
type EKSCluster struct {
	Name             string            `json:"name"`
	ARN              string            `json:"arn"`
	Status           string            `json:"status"`
	Version          string            `json:"version,omitempty"`
	PlatformVersion  string            `json:"platformVersion,omitempty"`
	Endpoint         string            `json:"endpoint,omitempty"`
	EndpointPublic   bool              `json:"endpointPublicAccess"`
	EndpointPrivate  bool              `json:"endpointPrivateAccess"`
	VPCID            string            `json:"vpcId,omitempty"`
	SubnetIDs        []string          `json:"subnetIds,omitempty"`
	SecurityGroupIDs []string          `json:"securityGroupIds,omitempty"`
	RoleARN          string            `json:"roleArn,omitempty"`
	CertAuthority    string            `json:"certificateAuthorityData,omitempty"` // base64-encoded CA for K8s API
	Tags             map[string]string `json:"tags,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// CreateParams is the resource configuration accepted by CreateCluster.
// Field names follow the EKS API so existing resource configs load unchanged.
type CreateParams struct {
	Name               string            `yaml:"name" json:"name"`
	RoleARN            string            `yaml:"roleArn" json:"roleArn"`
	Version            string            `yaml:"version,omitempty" json:"version,omitempty"`
	ResourcesVpcConfig VpcConfig         `yaml:"resourcesVpcConfig" json:"resourcesVpcConfig"`
	Logging            *LoggingConfig    `yaml:"logging,omitempty" json:"logging,omitempty"`
	Tags               map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

type VpcConfig struct {
	SubnetIDs             []string `yaml:"subnetIds" json:"subnetIds"`
	SecurityGroupIDs      []string `yaml:"securityGroupIds,omitempty" json:"securityGroupIds,omitempty"`
	EndpointPublicAccess  *bool    `yaml:"endpointPublicAccess,omitempty" json:"endpointPublicAccess,omitempty"`
	EndpointPrivateAccess *bool    `yaml:"endpointPrivateAccess,omitempty" json:"endpointPrivateAccess,omitempty"`
}

// LoggingConfig enables control plane log types (api, audit, authenticator,
// controllerManager, scheduler).
type LoggingConfig struct {
	Types   []string `yaml:"types" json:"types"`
	Enabled bool     `yaml:"enabled" json:"enabled"`
}

// NodeType classifies how a cluster provisions its workers.
type NodeType string

const (
	NodeTypeFargate          NodeType = "fargate"
	NodeTypeNodeGroup        NodeType = "nodegroup"
	NodeTypeFargateNodeGroup NodeType = "fargate-nodegroup"
)

// ClassifyNodeType derives the node type from the fargate profiles and node
// groups attached to a cluster. A cluster with neither counts as nodegroup.
func ClassifyNodeType(fargateProfiles, nodeGroups []string) NodeType {
	switch {
	case len(fargateProfiles) > 0 && len(nodeGroups) > 0:
		return NodeTypeFargateNodeGroup
	case len(fargateProfiles) > 0:
		return NodeTypeFargate
	default:
		return NodeTypeNodeGroup
	}
}
