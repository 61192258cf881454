// Package metrics exposes the engine's Prometheus counters and
// histograms, and the optional HTTP endpoint that serves them. The series
// move only through the Observe* helpers below, and no package in this
// module calls them.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EvidenceStoredTotal counts vault.Store outcomes reported through
	// ObserveEvidenceStored, labeled "ok" or "error".
	EvidenceStoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evidence_stored_total",
		Help: "Total number of evidence items stored in the vault.",
	}, []string{"result"})

	// PolicyEvaluationsTotal counts policy engine evaluations, labeled by
	// policy id and outcome (pass/violation).
	PolicyEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policy_evaluations_total",
		Help: "Total number of policy evaluations performed.",
	}, []string{"policy_id", "outcome"})

	// BlockExecutionDuration records how long each block takes to run,
	// labeled by block id and whether it succeeded.
	BlockExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "block_execution_duration_seconds",
		Help:    "Time spent executing a processing block.",
		Buckets: prometheus.DefBuckets,
	}, []string{"block_id", "outcome"})
)

// ObserveBlock records the outcome and duration of one block execution.
func ObserveBlock(blockID string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	BlockExecutionDuration.WithLabelValues(blockID, outcome).Observe(seconds)
}

// ObserveEvidenceStored records one vault.Store outcome.
func ObserveEvidenceStored(err error) {
	if err != nil {
		EvidenceStoredTotal.WithLabelValues("error").Inc()
		return
	}
	EvidenceStoredTotal.WithLabelValues("ok").Inc()
}

// ObservePolicyEvaluation records one policy evaluation outcome.
func ObservePolicyEvaluation(policyID string, violated bool) {
	outcome := "pass"
	if violated {
		outcome = "violation"
	}
	PolicyEvaluationsTotal.WithLabelValues(policyID, outcome).Inc()
}

// Serve starts a blocking HTTP server exposing /metrics on addr. It
// returns when ctx is canceled or the server fails to bind.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
