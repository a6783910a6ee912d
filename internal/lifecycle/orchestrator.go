package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tasnim.dev/eks-lifecycle/internal/aws/eks"
	awslogs "tasnim.dev/eks-lifecycle/internal/aws/logs"
	awss3 "tasnim.dev/eks-lifecycle/internal/aws/s3"
	"tasnim.dev/eks-lifecycle/internal/constants"
	"tasnim.dev/eks-lifecycle/internal/metrics"
	"tasnim.dev/eks-lifecycle/internal/state"
	"tasnim.dev/eks-lifecycle/internal/utils"
)

const envTypeLabel = "eks"

// Orchestrator drives a cluster instance through prepare, create, poststart
// and delete, keeping its runtime properties in the registry.
type Orchestrator struct {
	deps Deps
	opts Options
	log  *zap.SugaredLogger
	now  func() time.Time
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = eks.DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = eks.DefaultMaxAttempts
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Orchestrator{deps: deps, opts: opts, log: log, now: time.Now}
}

// PoststartResult summarises a successful Poststart.
type PoststartResult struct {
	Cluster    eks.EKSCluster
	NodeType   eks.NodeType
	Zones      []string
	Kubeconfig *eks.KubeConfig
	Enrichment []EnrichmentResult
}

func generatedName() string {
	return "eks-" + uuid.NewString()[:8]
}

func record(op string, err error) {
	metrics.Operations.WithLabelValues(op, metrics.Result(err)).Inc()
}

// Prepare records the resource configuration of an instance without touching
// the provider. The cluster name defaults to the instance ID.
func (o *Orchestrator) Prepare(ctx context.Context, instanceID string, params eks.CreateParams) (inst state.Instance, err error) {
	defer func() { record("prepare", err) }()

	if instanceID == "" {
		return state.Instance{}, fmt.Errorf("%w: instance ID is required", ErrInvalidParams)
	}
	if params.Name == "" {
		params.Name = instanceID
	}

	existing, err := o.deps.Registry.Get(ctx, instanceID)
	switch {
	case err == nil:
		switch existing.State {
		case state.StateUncreated, state.StateDeleted:
		case state.StateFailed:
			if existing.ARN != "" {
				return state.Instance{}, fmt.Errorf("instance %s still owns cluster %s, delete it first: %w",
					instanceID, existing.ARN, state.ErrInvalidTransition)
			}
		default:
			return state.Instance{}, fmt.Errorf("instance %s is %s: %w", instanceID, existing.State, state.ErrInvalidTransition)
		}
	case !errors.Is(err, state.ErrNotFound):
		return state.Instance{}, err
	}

	inst = state.Instance{
		ID:             instanceID,
		DeploymentID:   o.opts.DeploymentID,
		ClusterName:    params.Name,
		Region:         o.opts.Region,
		State:          state.StateUncreated,
		ResourceConfig: params,
		Labels:         existing.Labels,
		CreatedAt:      existing.CreatedAt,
	}
	if err := o.deps.Registry.Put(ctx, inst); err != nil {
		return state.Instance{}, err
	}
	o.log.Infow("Prepared cluster instance", "instance", instanceID, "cluster", params.Name)
	return o.deps.Registry.Get(ctx, instanceID)
}

// Create submits the cluster. The name comes from params, else the instance
// ID, else a generated eks-<id>. A role given by name is resolved to its ARN.
func (o *Orchestrator) Create(ctx context.Context, instanceID string, params eks.CreateParams) (inst state.Instance, err error) {
	defer func() { record("create", err) }()

	if instanceID == "" {
		if params.Name != "" {
			instanceID = params.Name
		} else {
			instanceID = generatedName()
		}
	}
	if params.Name == "" {
		params.Name = instanceID
	}
	if params.RoleARN == "" {
		return state.Instance{}, fmt.Errorf("%w: roleArn is required", ErrInvalidParams)
	}
	if len(params.ResourcesVpcConfig.SubnetIDs) == 0 {
		return state.Instance{}, fmt.Errorf("%w: resourcesVpcConfig.subnetIds is required", ErrInvalidParams)
	}

	existing, err := o.deps.Registry.Get(ctx, instanceID)
	switch {
	case errors.Is(err, state.ErrNotFound):
		if _, err := o.Prepare(ctx, instanceID, params); err != nil {
			return state.Instance{}, err
		}
	case err != nil:
		return state.Instance{}, err
	case existing.ARN != "" && existing.State != state.StateDeleted:
		return state.Instance{}, fmt.Errorf("instance %s already owns cluster %s: %w",
			instanceID, existing.ARN, state.ErrInvalidTransition)
	}

	if o.deps.Roles != nil {
		arn, err := o.deps.Roles.ResolveRoleARN(ctx, params.RoleARN)
		if err != nil {
			return state.Instance{}, fmt.Errorf("resolving cluster role: %w", err)
		}
		params.RoleARN = arn
	}

	if _, err := o.deps.Registry.Update(ctx, instanceID, func(i *state.Instance) error {
		i.ClusterName = params.Name
		i.ResourceConfig = params
		i.State = state.StateCreating
		return nil
	}); err != nil {
		return state.Instance{}, err
	}

	o.log.Infow("Creating cluster", "instance", instanceID, "cluster", params.Name, "version", params.Version)
	cluster, err := o.deps.Clusters.CreateCluster(ctx, params)
	if err != nil {
		o.markFailed(ctx, instanceID)
		return state.Instance{}, err
	}

	return o.deps.Registry.Update(ctx, instanceID, func(i *state.Instance) error {
		i.ARN = cluster.ARN
		if i.Region == "" {
			i.Region = o.regionOf(cluster.ARN)
		}
		return nil
	})
}

// Poststart waits for the cluster to become active, then issues and stores
// its kubeconfig and records labels, site and a resource snapshot.
func (o *Orchestrator) Poststart(ctx context.Context, instanceID string) (res *PoststartResult, err error) {
	defer func() { record("poststart", err) }()

	inst, err := o.deps.Registry.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	name := inst.ClusterName

	if inst.State == state.StateFailed {
		// A previous wait gave up; the cluster may still come up.
		if inst.ARN == "" {
			return nil, fmt.Errorf("instance %s has no cluster to wait for: %w", instanceID, state.ErrInvalidTransition)
		}
		if _, err := o.deps.Registry.Transition(ctx, instanceID, state.StateCreating); err != nil {
			return nil, err
		}
	}

	o.log.Infow("Waiting for cluster to become active", "cluster", name)
	if err := o.Wait(ctx, name, eks.TargetActive); err != nil {
		if errors.Is(err, eks.ErrWaitTimeout) || errors.Is(err, eks.ErrTerminalState) {
			o.markFailed(ctx, instanceID)
		}
		return nil, err
	}

	cluster, err := o.deps.Clusters.DescribeCluster(ctx, name)
	if err != nil {
		return nil, err
	}
	res = &PoststartResult{Cluster: cluster}

	if o.opts.StoreKubeconfig {
		kc, published, err := o.storeKubeconfig(ctx, instanceID, cluster)
		if err != nil {
			return nil, err
		}
		res.Kubeconfig = kc
		if published != nil {
			res.Enrichment = append(res.Enrichment, *published)
		}
	}

	fargate, err := o.deps.Clusters.ListFargateProfileNames(ctx, name)
	if err != nil {
		return nil, err
	}
	nodeGroups, err := o.deps.Clusters.ListNodegroupNames(ctx, name)
	if err != nil {
		return nil, err
	}
	res.NodeType = eks.ClassifyNodeType(fargate, nodeGroups)

	subnets := inst.ResourceConfig.ResourcesVpcConfig.SubnetIDs
	if len(subnets) == 0 {
		subnets = cluster.SubnetIDs
	}
	zones, zoneResult := o.lookupZones(ctx, subnets)
	res.Zones = zones
	res.Enrichment = append(res.Enrichment, zoneResult)

	arn := inst.ARN
	if arn == "" {
		arn = cluster.ARN
	}
	region := inst.Region
	if region == "" {
		region = o.regionOf(arn)
	}

	res.Enrichment = append(res.Enrichment,
		o.addLabels(ctx, instanceID, map[string]string{
			"csys-env-type": envTypeLabel,
			"aws-region":    region,
			"external-id":   arn,
			"eks-node-type": string(res.NodeType),
			"location":      strings.Join(zones, ", "),
		}),
		o.assignSite(ctx, instanceID, region),
	)
	o.logEnrichment(name, res.Enrichment)

	snapshot, err := snapshotOf(cluster)
	if err != nil {
		return nil, err
	}
	if _, err := o.deps.Registry.Update(ctx, instanceID, func(i *state.Instance) error {
		i.ARN = arn
		i.Region = region
		i.Resource = snapshot
		i.State = state.StateActive
		return nil
	}); err != nil {
		return nil, err
	}

	o.log.Infow("Cluster is active", "cluster", name, "endpoint", cluster.Endpoint, "nodeType", res.NodeType)
	return res, nil
}

// Delete tears the cluster down and waits until the provider no longer
// reports it. A cluster that is already gone counts as deleted.
func (o *Orchestrator) Delete(ctx context.Context, instanceID string) (results []EnrichmentResult, err error) {
	defer func() { record("delete", err) }()

	inst, err := o.deps.Registry.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	name := inst.ClusterName

	switch {
	case inst.State == state.StateDeleted:
		return nil, nil
	case inst.State == state.StateUncreated && inst.ARN == "":
		_, err := o.deps.Registry.Transition(ctx, instanceID, state.StateDeleted)
		return nil, err
	}

	if _, err := o.deps.Registry.Transition(ctx, instanceID, state.StateDeleting); err != nil {
		return nil, err
	}

	o.log.Infow("Deleting cluster", "cluster", name)
	err = o.deps.Clusters.DeleteCluster(ctx, name)
	switch {
	case errors.Is(err, eks.ErrClusterNotFound):
		o.log.Infow("Cluster already gone", "cluster", name)
	case err != nil:
		o.markFailed(ctx, instanceID)
		return nil, err
	default:
		o.log.Infow("Waiting for cluster to be deleted", "cluster", name)
		if err := o.Wait(ctx, name, eks.TargetDeleted); err != nil {
			if errors.Is(err, eks.ErrWaitTimeout) || errors.Is(err, eks.ErrTerminalState) {
				o.markFailed(ctx, instanceID)
			}
			return nil, err
		}
	}

	results = append(results,
		o.deleteLogGroup(ctx, name),
		o.unpublishKubeconfig(ctx, inst),
	)
	o.logEnrichment(name, results)

	if _, err := o.deps.Registry.Update(ctx, instanceID, func(i *state.Instance) error {
		i.Kubeconf = nil
		i.KubeconfigObject = ""
		i.State = state.StateDeleted
		return nil
	}); err != nil {
		return results, err
	}
	return results, nil
}

// Forget drops the record of an instance that no longer owns a cluster.
func (o *Orchestrator) Forget(ctx context.Context, instanceID string) (err error) {
	defer func() { record("forget", err) }()

	inst, err := o.deps.Registry.Get(ctx, instanceID)
	if err != nil {
		return err
	}
	gone := inst.State == state.StateDeleted || (inst.State == state.StateUncreated && inst.ARN == "")
	if !gone {
		return fmt.Errorf("instance %s is %s: %w", instanceID, inst.State, state.ErrInvalidTransition)
	}
	if err := o.deps.Registry.Delete(ctx, instanceID); err != nil {
		return err
	}
	o.log.Infow("Forgot cluster instance", "instance", instanceID, "cluster", inst.ClusterName)
	return nil
}

// RefreshKubeconfig issues a fresh token for an active instance. The new
// kubeconfig is persisted, and republished, only when storing is enabled.
func (o *Orchestrator) RefreshKubeconfig(ctx context.Context, instanceID string) (kc *eks.KubeConfig, err error) {
	defer func() { record("refresh_kubeconfig", err) }()

	inst, err := o.deps.Registry.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst.State != state.StateActive {
		return nil, fmt.Errorf("instance %s is %s: %w", instanceID, inst.State, ErrNotActive)
	}

	cluster, err := o.deps.Clusters.DescribeCluster(ctx, inst.ClusterName)
	if err != nil {
		return nil, err
	}

	if !o.opts.StoreKubeconfig {
		return o.issue(ctx, cluster)
	}
	kc, published, err := o.storeKubeconfig(ctx, instanceID, cluster)
	if err != nil {
		return nil, err
	}
	if published != nil {
		o.logEnrichment(inst.ClusterName, []EnrichmentResult{*published})
	}
	return kc, nil
}

// IssueKubeconfig describes a cluster and returns a kubeconfig for it,
// without touching the registry.
func (o *Orchestrator) IssueKubeconfig(ctx context.Context, clusterName string) (*eks.KubeConfig, error) {
	cluster, err := o.deps.Clusters.DescribeCluster(ctx, clusterName)
	if err != nil {
		return nil, err
	}
	return o.issue(ctx, cluster)
}

// Discover lists and describes every cluster in the region. Errors are
// logged and yield a partial or empty result.
func (o *Orchestrator) Discover(ctx context.Context) []eks.EKSCluster {
	names, err := o.deps.Clusters.ListClusterNames(ctx)
	if err != nil {
		o.log.Warnw("Listing clusters failed", "error", err)
		return []eks.EKSCluster{}
	}

	clusters := make([]eks.EKSCluster, 0, len(names))
	for _, name := range names {
		cluster, err := o.deps.Clusters.DescribeCluster(ctx, name)
		if err != nil {
			o.log.Warnw("Describing cluster failed", "cluster", name, "error", err)
			continue
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// Wait blocks until clusterName reaches target using the configured interval
// and attempt budget.
func (o *Orchestrator) Wait(ctx context.Context, clusterName string, target eks.Target) error {
	waiter := eks.NewWaiter(o.deps.Clusters)
	waiter.OnAttempt = func(obs eks.Observation) {
		status := obs.Status
		if !obs.Found {
			status = "NOT_FOUND"
		}
		metrics.WaitAttempts.WithLabelValues(string(obs.Target), status).Inc()
		o.log.Debugw("Polled cluster", "cluster", obs.Cluster, "status", status,
			"attempt", obs.Attempt, "maxAttempts", obs.MaxAttempts)
		if o.opts.OnAttempt != nil {
			o.opts.OnAttempt(obs)
		}
	}

	spec := eks.NewWaitSpec(clusterName, target)
	spec.PollInterval = o.opts.PollInterval
	spec.MaxAttempts = o.opts.MaxAttempts
	o.log.Debugw("Waiting for cluster", "cluster", clusterName, "target", target, "budget", spec.Budget())

	start := o.now()
	err := waiter.Wait(ctx, spec)
	metrics.WaitDuration.WithLabelValues(string(target), metrics.Result(err)).Observe(o.now().Sub(start).Seconds())
	return err
}

func (o *Orchestrator) issue(ctx context.Context, cluster eks.EKSCluster) (*eks.KubeConfig, error) {
	kc, err := o.deps.Issuer.Kubeconfig(ctx, cluster.Endpoint, cluster.CertAuthority, cluster.Name)
	metrics.TokensIssued.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	return kc, nil
}

// storeKubeconfig issues a kubeconfig and persists it. Nothing is persisted
// when the document cannot be serialized. Publishing to the bucket is best
// effort and reported through the returned result.
func (o *Orchestrator) storeKubeconfig(ctx context.Context, instanceID string, cluster eks.EKSCluster) (*eks.KubeConfig, *EnrichmentResult, error) {
	kc, err := o.issue(ctx, cluster)
	if err != nil {
		return nil, nil, err
	}
	tree, err := kc.Map()
	if err != nil {
		return nil, nil, err
	}

	var published *EnrichmentResult
	var object string
	if o.deps.Objects != nil && o.opts.KubeconfigBucket != "" {
		r := EnrichmentResult{Step: "publish-kubeconfig"}
		object, r.Err = o.publish(ctx, kc, cluster.Name)
		r.Applied = r.Err == nil
		published = &r
	}

	if _, err := o.deps.Registry.Update(ctx, instanceID, func(i *state.Instance) error {
		i.Kubeconf = tree
		if object != "" {
			i.KubeconfigObject = object
		}
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return kc, published, nil
}

func (o *Orchestrator) publish(ctx context.Context, kc *eks.KubeConfig, clusterName string) (string, error) {
	data, err := kc.YAML()
	if err != nil {
		return "", err
	}
	key := awss3.KubeconfigKey(o.opts.DeploymentID, clusterName)
	obj, err := o.deps.Objects.Put(ctx, o.opts.KubeconfigBucket, key, data, "application/yaml")
	if err != nil {
		return "", err
	}
	return obj.URI(), nil
}

// lookupZones returns one zone per subnet, in subnet order.
func (o *Orchestrator) lookupZones(ctx context.Context, subnets []string) ([]string, EnrichmentResult) {
	r := EnrichmentResult{Step: "zones"}
	if o.deps.Subnets == nil || len(subnets) == 0 {
		return nil, r
	}
	byID, err := o.deps.Subnets.SubnetZones(ctx, subnets)
	if err != nil {
		r.Err = err
		return nil, r
	}
	zones := make([]string, 0, len(subnets))
	for _, id := range subnets {
		if z, ok := byID[id]; ok {
			zones = append(zones, z)
		}
	}
	r.Applied = true
	return zones, r
}

func (o *Orchestrator) addLabels(ctx context.Context, instanceID string, labels map[string]string) EnrichmentResult {
	r := EnrichmentResult{Step: "labels"}
	r.Err = o.deps.Registry.AddLabels(ctx, instanceID, labels)
	r.Applied = r.Err == nil
	return r
}

func (o *Orchestrator) assignSite(ctx context.Context, instanceID, region string) EnrichmentResult {
	r := EnrichmentResult{Step: "site"}
	loc, ok := constants.LookupLocation(region)
	if !ok {
		r.Err = fmt.Errorf("%w: %q", ErrNoLocation, region)
		return r
	}
	r.Err = o.deps.Registry.AssignSite(ctx, instanceID, state.Site{
		Name:        loc.Name,
		Coordinates: loc.Coordinates(),
	})
	r.Applied = r.Err == nil
	return r
}

func (o *Orchestrator) deleteLogGroup(ctx context.Context, clusterName string) EnrichmentResult {
	r := EnrichmentResult{Step: "log-group"}
	if o.deps.Logs == nil {
		return r
	}
	r.Applied, r.Err = o.deps.Logs.DeleteLogGroup(ctx, awslogs.ControlPlaneLogGroup(clusterName))
	return r
}

func (o *Orchestrator) unpublishKubeconfig(ctx context.Context, inst state.Instance) EnrichmentResult {
	r := EnrichmentResult{Step: "kubeconfig-object"}
	if o.deps.Objects == nil || inst.KubeconfigObject == "" {
		return r
	}
	bucket, key, ok := splitS3URI(inst.KubeconfigObject)
	if !ok {
		r.Err = fmt.Errorf("malformed object location %q", inst.KubeconfigObject)
		return r
	}
	r.Err = o.deps.Objects.Delete(ctx, bucket, key)
	r.Applied = r.Err == nil
	return r
}

func (o *Orchestrator) logEnrichment(clusterName string, results []EnrichmentResult) {
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if !errors.Is(r.Err, ErrNoLocation) {
			metrics.EnrichmentFailures.WithLabelValues(r.Step).Inc()
		}
		o.log.Warnw("Skipping best-effort step", "cluster", clusterName, "step", r.Step, "error", r.Err)
	}
}

func (o *Orchestrator) markFailed(ctx context.Context, instanceID string) {
	if _, err := o.deps.Registry.Transition(ctx, instanceID, state.StateFailed); err != nil {
		o.log.Errorw("Recording failed state", "instance", instanceID, "error", err)
	}
}

func (o *Orchestrator) regionOf(arn string) string {
	if o.opts.Region != "" {
		return o.opts.Region
	}
	region, err := utils.RegionFromARN(arn)
	if err != nil {
		return ""
	}
	return region
}

// snapshotOf renders a cluster as a plain JSON tree.
func snapshotOf(cluster eks.EKSCluster) (map[string]any, error) {
	data, err := json.Marshal(cluster)
	if err != nil {
		return nil, &eks.SerializationError{Format: "json", Err: err}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &eks.SerializationError{Format: "json", Err: err}
	}
	return out, nil
}

func splitS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
