package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveEvidenceStoredIncrementsByResult(t *testing.T) {
	before := testutil.ToFloat64(EvidenceStoredTotal.WithLabelValues("ok"))
	ObserveEvidenceStored(nil)
	after := testutil.ToFloat64(EvidenceStoredTotal.WithLabelValues("ok"))
	if after != before+1 {
		t.Fatalf("evidence_stored_total{result=ok} = %v, want %v", after, before+1)
	}

	before = testutil.ToFloat64(EvidenceStoredTotal.WithLabelValues("error"))
	ObserveEvidenceStored(errors.New("boom"))
	after = testutil.ToFloat64(EvidenceStoredTotal.WithLabelValues("error"))
	if after != before+1 {
		t.Fatalf("evidence_stored_total{result=error} = %v, want %v", after, before+1)
	}
}

func TestObservePolicyEvaluationLabelsOutcome(t *testing.T) {
	before := testutil.ToFloat64(PolicyEvaluationsTotal.WithLabelValues("policy-1", "violation"))
	ObservePolicyEvaluation("policy-1", true)
	after := testutil.ToFloat64(PolicyEvaluationsTotal.WithLabelValues("policy-1", "violation"))
	if after != before+1 {
		t.Fatalf("policy_evaluations_total{outcome=violation} = %v, want %v", after, before+1)
	}
}

func TestObserveBlockRecordsOutcomeLabel(t *testing.T) {
	beforeCount := testutil.CollectAndCount(BlockExecutionDuration)
	ObserveBlock("transform.filter", 0.01, nil)
	ObserveBlock("transform.filter", 0.02, errors.New("failed"))
	afterCount := testutil.CollectAndCount(BlockExecutionDuration)
	if afterCount <= beforeCount {
		t.Fatalf("expected new label combinations to be observed, before=%d after=%d", beforeCount, afterCount)
	}
}
