package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle operations keyed by operation (create, poststart, delete, ...) and result.
	Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eks_lifecycle_operations_total",
		Help: "Total number of lifecycle operations by outcome",
	}, []string{"operation", "result"})

	WaitAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eks_lifecycle_wait_attempts_total",
		Help: "Total number of describe calls made while waiting on a cluster",
	}, []string{"target", "status"})

	WaitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eks_lifecycle_wait_duration_seconds",
		Help:    "Time spent waiting for a cluster to reach its target state",
		Buckets: []float64{30, 60, 120, 300, 600, 900, 1200, 1800},
	}, []string{"target", "result"})

	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eks_lifecycle_tokens_issued_total",
		Help: "Total number of bearer tokens issued",
	}, []string{"result"})

	// Best-effort steps (labels, site, publish, log cleanup) that failed.
	EnrichmentFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eks_lifecycle_enrichment_failures_total",
		Help: "Total number of best-effort steps that failed",
	}, []string{"step"})
)

func init() {
	prometheus.MustRegister(
		Operations,
		WaitAttempts,
		WaitDuration,
		TokensIssued,
		EnrichmentFailures,
	)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// MetricsHandler exposes the registered metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
