package state

import (
	"errors"
	"fmt"
	"time"

	"tasnim.dev/eks-lifecycle/internal/aws/eks"
)

var (
	ErrNotFound          = errors.New("instance not found")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// State is the lifecycle state of a managed cluster instance.
type State string

const (
	StateUncreated State = "UNCREATED"
	StateCreating  State = "CREATING"
	StateActive    State = "ACTIVE"
	StateDeleting  State = "DELETING"
	StateDeleted   State = "DELETED"
	StateFailed    State = "FAILED"
)

var transitions = map[State][]State{
	// An uncreated instance with a recorded ARN still owns a cluster.
	StateUncreated: {StateCreating, StateDeleting, StateDeleted},
	StateCreating:  {StateActive, StateFailed, StateDeleting},
	StateActive:    {StateDeleting},
	StateDeleting:  {StateDeleted, StateFailed},
	// A failed instance can be torn down or retried.
	StateFailed:  {StateDeleting, StateCreating},
	StateDeleted: {StateCreating},
}

// CanTransition reports whether from → to is allowed. Staying in the same
// state is always allowed.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError is returned when a state change is rejected.
type TransitionError struct {
	ID   string
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("instance %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Site is the physical location an instance is assigned to.
type Site struct {
	Name        string `json:"name"`
	Coordinates string `json:"coordinates"`
}

// Instance holds the runtime properties of one managed cluster.
type Instance struct {
	ID           string
	DeploymentID string
	ClusterName  string
	ARN          string
	Region       string
	State        State

	ResourceConfig eks.CreateParams
	// Kubeconf is the last issued kubeconfig as a plain JSON tree.
	Kubeconf map[string]any
	// Resource is the cluster snapshot taken after it became active.
	Resource map[string]any
	Labels   map[string]string
	Site     *Site
	// KubeconfigObject is the s3:// URI the kubeconfig was published to.
	KubeconfigObject string

	CreatedAt time.Time
	UpdatedAt time.Time
}
