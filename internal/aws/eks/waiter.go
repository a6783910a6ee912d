package eks

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Target is the condition a Waiter polls for.
type Target string

const (
	TargetActive  Target = "ACTIVE"
	TargetDeleted Target = "DELETED"
)

const (
	// DefaultPollInterval is the fixed delay between describe calls.
	DefaultPollInterval = 30 * time.Second

	// DefaultMaxAttempts bounds a wait to roughly 20 minutes at the default interval.
	DefaultMaxAttempts = 40
)

// WaitSpec describes a single wait. It is a value and is not modified by Wait.
type WaitSpec struct {
	ClusterName  string
	Target       Target
	PollInterval time.Duration
	MaxAttempts  int
}

// NewWaitSpec returns a WaitSpec with the default interval and attempt budget.
func NewWaitSpec(clusterName string, target Target) WaitSpec {
	return WaitSpec{
		ClusterName:  clusterName,
		Target:       target,
		PollInterval: DefaultPollInterval,
		MaxAttempts:  DefaultMaxAttempts,
	}
}

// Budget is the longest a wait can block before giving up.
func (s WaitSpec) Budget() time.Duration {
	if s.MaxAttempts <= 1 {
		return 0
	}
	return time.Duration(s.MaxAttempts-1) * s.PollInterval
}

func (s WaitSpec) validate() error {
	if s.ClusterName == "" {
		return fmt.Errorf("wait: cluster name is required")
	}
	if s.Target != TargetActive && s.Target != TargetDeleted {
		return fmt.Errorf("wait: unknown target %q", s.Target)
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("wait: max attempts must be at least 1, got %d", s.MaxAttempts)
	}
	if s.PollInterval < 0 {
		return fmt.Errorf("wait: poll interval must not be negative, got %s", s.PollInterval)
	}
	return nil
}

// Observation is what a Waiter saw on one describe attempt.
type Observation struct {
	Cluster     string
	Target      Target
	Attempt     int
	MaxAttempts int
	Status      string // empty when the cluster was not found
	Found       bool
}

// Describer is the part of Client a Waiter needs.
type Describer interface {
	DescribeCluster(ctx context.Context, name string) (EKSCluster, error)
}

// Waiter polls DescribeCluster at a fixed interval until a target is reached.
type Waiter struct {
	describer Describer

	// OnAttempt, if set, is called after every describe attempt.
	OnAttempt func(Observation)
}

func NewWaiter(describer Describer) *Waiter {
	return &Waiter{describer: describer}
}

// Wait blocks until the cluster reaches spec.Target, the attempt budget runs
// out (*TimeoutError), a terminal status is observed (*TerminalStateError),
// describe fails, or ctx is done.
func (w *Waiter) Wait(ctx context.Context, spec WaitSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}

	var (
		attempt    int
		lastStatus string
		condErr    error
	)

	backoff := wait.Backoff{
		Duration: spec.PollInterval,
		Steps:    spec.MaxAttempts,
	}

	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		attempt++
		done, err := w.poll(ctx, spec, attempt, &lastStatus)
		condErr = err
		return done, err
	})

	switch {
	case err == nil:
		return nil
	case condErr != nil:
		return condErr
	case ctx.Err() != nil:
		return fmt.Errorf("waiting for cluster %s to be %s: %w", spec.ClusterName, spec.Target, ctx.Err())
	case wait.Interrupted(err):
		return &TimeoutError{
			Cluster:    spec.ClusterName,
			Target:     spec.Target,
			Attempts:   attempt,
			LastStatus: lastStatus,
		}
	default:
		return err
	}
}

func (w *Waiter) poll(ctx context.Context, spec WaitSpec, attempt int, lastStatus *string) (bool, error) {
	obs := Observation{
		Cluster:     spec.ClusterName,
		Target:      spec.Target,
		Attempt:     attempt,
		MaxAttempts: spec.MaxAttempts,
	}

	cluster, err := w.describer.DescribeCluster(ctx, spec.ClusterName)
	if err != nil {
		if !IsNotFound(err) {
			return false, err
		}
		*lastStatus = ""
		w.observe(obs)
		if spec.Target == TargetDeleted {
			return true, nil
		}
		return false, err
	}

	*lastStatus = cluster.Status
	obs.Status = cluster.Status
	obs.Found = true
	w.observe(obs)

	return evaluate(spec, cluster.Status)
}

func (w *Waiter) observe(obs Observation) {
	if w.OnAttempt != nil {
		w.OnAttempt(obs)
	}
}

// evaluate maps an observed status to done / keep polling / give up. The
// failure states mirror the provider's own ClusterActive and ClusterDeleted
// waiter definitions.
func evaluate(spec WaitSpec, status string) (bool, error) {
	terminal := func() (bool, error) {
		return false, &TerminalStateError{Cluster: spec.ClusterName, Target: spec.Target, Status: status}
	}

	switch spec.Target {
	case TargetActive:
		switch status {
		case StatusActive:
			return true, nil
		case StatusFailed, StatusDeleting:
			return terminal()
		}
	case TargetDeleted:
		switch status {
		case StatusActive, StatusCreating, StatusPending, StatusFailed:
			return terminal()
		}
	}
	return false, nil
}
