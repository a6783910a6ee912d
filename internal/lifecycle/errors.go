package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLocation is reported when a region has no known physical site.
	ErrNoLocation    = errors.New("no location known for region")
	ErrInvalidParams = errors.New("invalid cluster parameters")
	ErrNotActive     = errors.New("instance is not active")
)

// EnrichmentResult is the outcome of one best-effort step. A failed step is
// reported and logged but never fails the operation.
type EnrichmentResult struct {
	Step    string
	Applied bool
	Err     error
}

func (r EnrichmentResult) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s: %v", r.Step, r.Err)
	case r.Applied:
		return r.Step + ": applied"
	default:
		return r.Step + ": skipped"
	}
}

// Failed returns the results that carry an error.
func Failed(results []EnrichmentResult) []EnrichmentResult {
	var out []EnrichmentResult
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
