package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	awsclient "tasnim.dev/eks-lifecycle/internal/aws"
	"tasnim.dev/eks-lifecycle/internal/aws/eks"
	"tasnim.dev/eks-lifecycle/internal/config"
	"tasnim.dev/eks-lifecycle/internal/lifecycle"
	"tasnim.dev/eks-lifecycle/internal/logging"
	"tasnim.dev/eks-lifecycle/internal/metrics"
	"tasnim.dev/eks-lifecycle/internal/state"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	profile     string
	region      string
	configPath  string
	metricsAddr string
	debug       bool
}

func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "eks-lifecycle",
		Short:        "Create, watch and tear down EKS clusters",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.profile, "profile", "p", "", "AWS profile to use")
	root.PersistentFlags().StringVarP(&opts.region, "region", "r", "", "AWS region to use")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/eks-lifecycle/config.yaml)")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newCreateCmd(opts),
		newDeleteCmd(opts),
		newDescribeCmd(opts),
		newListCmd(opts),
		newWaitCmd(opts),
		newKubeconfigCmd(opts),
		newTokenCmd(opts),
		newRefreshKubeconfigCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// runtime holds everything a command needs once flags and config are merged.
type runtime struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	aws     *awsclient.ServiceClient
	profile string
	region  string

	store   *state.Store
	metrics *http.Server
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFrom(o.configPath)
	}
	return config.Load()
}

func (o *globalOptions) setup(ctx context.Context) (*runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	profile, region := cfg.Merge(o.profile, o.region)

	log, err := logging.New(o.debug || cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logging.RouteKlog(log)

	client, err := awsclient.NewServiceClient(ctx, profile, region)
	if err != nil {
		return nil, fmt.Errorf("initializing AWS client: %w", err)
	}

	client.Issuer.SetURLExpiry(cfg.TokenURLExpiry)

	rt := &runtime{
		cfg:     cfg,
		log:     log,
		aws:     client,
		profile: profile,
		region:  client.Region,
	}

	addr := o.metricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}
	if addr != "" {
		rt.serveMetrics(addr)
	}
	return rt, nil
}

func (r *runtime) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.MetricsHandler())
	r.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	srv, log := r.metrics, r.log
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("Metrics server stopped", "addr", addr, "error", err)
		}
	}()
	log.Infow("Serving metrics", "addr", addr)
}

// registry opens the state store on first use.
func (r *runtime) registry() (*state.Store, error) {
	if r.store != nil {
		return r.store, nil
	}
	store, err := state.Open(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("opening state registry: %w", err)
	}
	r.store = store
	return store, nil
}

func (r *runtime) orchestrator(onAttempt func(eks.Observation)) (*lifecycle.Orchestrator, error) {
	store, err := r.registry()
	if err != nil {
		return nil, err
	}

	return lifecycle.New(lifecycle.Deps{
		Clusters: r.aws.EKS,
		Issuer:   r.aws.Issuer,
		Registry: store,
		Roles:    r.aws.IAM,
		Subnets:  r.aws.VPC,
		Objects:  r.aws.S3,
		Logs:     r.aws.Logs,
		Log:      r.log,
	}, lifecycle.Options{
		Region:           r.region,
		DeploymentID:     r.cfg.DeploymentID,
		PollInterval:     r.cfg.PollInterval,
		MaxAttempts:      r.cfg.MaxAttempts,
		StoreKubeconfig:  r.cfg.StoreKubeConfigInRuntime,
		KubeconfigBucket: r.cfg.KubeconfigBucket,
		OnAttempt:        onAttempt,
	}), nil
}

// resolveInstance accepts an instance ID or a cluster name.
func (r *runtime) resolveInstance(ctx context.Context, ref string) (state.Instance, error) {
	store, err := r.registry()
	if err != nil {
		return state.Instance{}, err
	}
	inst, err := store.Get(ctx, ref)
	if errors.Is(err, state.ErrNotFound) {
		return store.FindByCluster(ctx, ref)
	}
	return inst, err
}

func (r *runtime) Close() {
	if r.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.metrics.Shutdown(ctx)
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.log.Warnw("Closing state registry", "error", err)
		}
	}
	_ = r.log.Sync()
}
