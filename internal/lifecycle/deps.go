package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tasnim.dev/eks-lifecycle/internal/aws/eks"
	awss3 "tasnim.dev/eks-lifecycle/internal/aws/s3"
	"tasnim.dev/eks-lifecycle/internal/state"
)

// ClusterAPI is the cluster control plane client.
type ClusterAPI interface {
	DescribeCluster(ctx context.Context, name string) (eks.EKSCluster, error)
	CreateCluster(ctx context.Context, params eks.CreateParams) (eks.EKSCluster, error)
	DeleteCluster(ctx context.Context, name string) error
	ListClusterNames(ctx context.Context) ([]string, error)
	ListNodegroupNames(ctx context.Context, clusterName string) ([]string, error)
	ListFargateProfileNames(ctx context.Context, clusterName string) ([]string, error)
}

// CredentialIssuer derives a kubeconfig from cluster connection details.
type CredentialIssuer interface {
	Kubeconfig(ctx context.Context, endpoint, caData, clusterName string) (*eks.KubeConfig, error)
}

type RoleResolver interface {
	ResolveRoleARN(ctx context.Context, nameOrARN string) (string, error)
}

type SubnetZones interface {
	SubnetZones(ctx context.Context, subnetIDs []string) (map[string]string, error)
}

type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) (awss3.PublishedObject, error)
	Delete(ctx context.Context, bucket, key string) error
}

type LogGroups interface {
	DeleteLogGroup(ctx context.Context, name string) (bool, error)
}

// Registry persists instance runtime properties.
type Registry interface {
	Get(ctx context.Context, id string) (state.Instance, error)
	Put(ctx context.Context, inst state.Instance) error
	Update(ctx context.Context, id string, fn func(*state.Instance) error) (state.Instance, error)
	Transition(ctx context.Context, id string, to state.State) (state.Instance, error)
	Delete(ctx context.Context, id string) error
	AddLabels(ctx context.Context, id string, labels map[string]string) error
	AssignSite(ctx context.Context, id string, site state.Site) error
}

// Deps are the collaborators of an Orchestrator. Roles, Subnets, Objects and
// Logs are optional; the steps that need them are skipped when nil.
type Deps struct {
	Clusters ClusterAPI
	Issuer   CredentialIssuer
	Registry Registry

	Roles   RoleResolver
	Subnets SubnetZones
	Objects ObjectStore
	Logs    LogGroups

	Log *zap.SugaredLogger
}

// Options tune an Orchestrator.
type Options struct {
	// Region the clusters live in. Derived from the cluster ARN when empty.
	Region       string
	DeploymentID string

	PollInterval time.Duration
	MaxAttempts  int

	// StoreKubeconfig persists issued kubeconfigs in the registry.
	StoreKubeconfig  bool
	KubeconfigBucket string

	// OnAttempt is called after every describe made while waiting.
	OnAttempt func(eks.Observation)
}
