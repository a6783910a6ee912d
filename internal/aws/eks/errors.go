package eks

import (
	"errors"
	"fmt"

	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/smithy-go"
)

var (
	// ErrClusterNotFound is returned when the provider reports the cluster does not exist.
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrWaitTimeout is matched by a TimeoutError.
	ErrWaitTimeout = errors.New("timed out waiting for cluster")

	// ErrTerminalState is matched by a TerminalStateError.
	ErrTerminalState = errors.New("cluster reached a terminal state")

	// ErrNotSerializable is matched by a SerializationError.
	ErrNotSerializable = errors.New("credential not serializable")
)

// TimeoutError reports that a wait used its whole attempt budget.
type TimeoutError struct {
	Cluster    string
	Target     Target
	Attempts   int
	LastStatus string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("cluster %s did not reach %s after %d attempts (last status %q)",
		e.Cluster, e.Target, e.Attempts, e.LastStatus)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrWaitTimeout }

// TerminalStateError reports a status from which the wait target can no longer be reached.
type TerminalStateError struct {
	Cluster string
	Target  Target
	Status  string
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("cluster %s entered status %s while waiting for %s", e.Cluster, e.Status, e.Target)
}

func (e *TerminalStateError) Is(target error) bool { return target == ErrTerminalState }

// SerializationError reports that a kubeconfig could not be rendered.
type SerializationError struct {
	Format string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("credential not serializable as %s: %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Is(target error) bool { return target == ErrNotSerializable }

// IsNotFound reports whether err means the cluster (or a child resource) does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClusterNotFound) {
		return true
	}

	var rnf *ekstypes.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return true
	}

	// Fall back to the API error code for responses the SDK did not type.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ResourceNotFoundException"
	}
	return false
}
