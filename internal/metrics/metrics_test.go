package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOperationsCounter(t *testing.T) {
	before := testutil.ToFloat64(Operations.WithLabelValues("create", "success"))
	Operations.WithLabelValues("create", Result(nil)).Inc()
	after := testutil.ToFloat64(Operations.WithLabelValues("create", "success"))
	if after != before+1 {
		t.Errorf("create/success = %v, want %v", after, before+1)
	}
}

func TestResult(t *testing.T) {
	if Result(nil) != "success" {
		t.Error("nil error should be success")
	}
	if Result(errors.New("x")) != "error" {
		t.Error("non-nil error should be error")
	}
}

func TestWaitDurationObserved(t *testing.T) {
	WaitDuration.WithLabelValues("ACTIVE", "success").Observe(42)
	if n := testutil.CollectAndCount(WaitDuration); n == 0 {
		t.Error("expected at least one histogram series")
	}
}

func TestMetricsHandler(t *testing.T) {
	TokensIssued.WithLabelValues("success").Inc()

	srv := httptest.NewServer(MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "eks_lifecycle_tokens_issued_total") {
		t.Error("metrics output missing eks_lifecycle_tokens_issued_total")
	}
}
