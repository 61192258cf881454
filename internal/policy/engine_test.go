package policy

import (
	"testing"
	"time"
)

func testPolicy(now time.Time) *Policy {
	return &Policy{
		ID:            "pol-test",
		Name:          "test policy",
		Type:          TypeFinancial,
		Version:       "1.0.0",
		Status:        StatusActive,
		EffectiveDate: now.Add(-time.Hour),
		ExpiryDate:    now.Add(time.Hour),
		Rules: []Rule{
			{
				ID:       "rule-threshold",
				Name:     "amount threshold",
				Type:     RuleThreshold,
				Severity: SeverityCritical,
				Enabled:  true,
				Parameters: map[string]any{
					"field":     "amount",
					"operator":  ">",
					"threshold": 1000000,
				},
			},
			{
				ID:       "rule-sod",
				Name:     "initiator != approver",
				Type:     RuleSegregationDuty,
				Severity: SeverityCritical,
				Enabled:  true,
			},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := NewEngine(dir, nil, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestEvaluatePolicyNotFound(t *testing.T) {
	e := newTestEngine(t)
	result := e.Evaluate("does-not-exist", map[string]any{}, "run-1", "block-1")
	if result.Success {
		t.Fatalf("expected success=false")
	}
	if result.ErrorMessage != "policy not found" {
		t.Fatalf("error message = %q", result.ErrorMessage)
	}
}

func TestEvaluatePolicyNotEffective(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now().UTC()
	p := testPolicy(now)
	p.EffectiveDate = now.Add(time.Hour) // starts in the future
	if err := e.SavePolicy(p, "tester"); err != nil {
		t.Fatalf("save: %v", err)
	}

	result := e.Evaluate(p.ID, map[string]any{"amount": 2000000}, "run-1", "block-1")
	if result.Success {
		t.Fatalf("expected success=false")
	}
	if result.ErrorMessage != "policy not effective" {
		t.Fatalf("error message = %q", result.ErrorMessage)
	}
}

func TestEvaluateThresholdAndSegregationDutyViolations(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now().UTC()
	p := testPolicy(now)
	if err := e.SavePolicy(p, "tester"); err != nil {
		t.Fatalf("save: %v", err)
	}

	data := map[string]any{"amount": 2000000, "initiator": "a", "approver": "a"}
	result := e.Evaluate(p.ID, data, "run-1", "block-1")
	if !result.Success {
		t.Fatalf("expected success=true, got error %q", result.ErrorMessage)
	}
	if len(result.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d: %+v", len(result.Violations), result.Violations)
	}

	var sawThreshold, sawSoD bool
	for _, v := range result.Violations {
		switch v.Type {
		case ViolationThresholdExceeded:
			sawThreshold = true
			if v.Severity != SeverityCritical {
				t.Fatalf("threshold violation severity = %v", v.Severity)
			}
		case ViolationSegregationDuty:
			sawSoD = true
			if v.Severity != SeverityCritical {
				t.Fatalf("sod violation severity = %v", v.Severity)
			}
		}
	}
	if !sawThreshold || !sawSoD {
		t.Fatalf("missing expected violation kinds: %+v", result.Violations)
	}
}

func TestEvaluateNoViolationsWhenCompliant(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now().UTC()
	p := testPolicy(now)
	if err := e.SavePolicy(p, "tester"); err != nil {
		t.Fatalf("save: %v", err)
	}

	data := map[string]any{"amount": 500, "initiator": "a", "approver": "b"}
	result := e.Evaluate(p.ID, data, "run-1", "block-1")
	if !result.Success {
		t.Fatalf("expected success=true")
	}
	if len(result.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", result.Violations)
	}
	if result.RulesPassed != 2 {
		t.Fatalf("rules passed = %d", result.RulesPassed)
	}
}

func TestGetActivePolicies(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now().UTC()
	active := testPolicy(now)
	if err := e.SavePolicy(active, "tester"); err != nil {
		t.Fatalf("save active: %v", err)
	}
	draft := testPolicy(now)
	draft.ID = "pol-draft"
	draft.Status = StatusDraft
	if err := e.SavePolicy(draft, "tester"); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	got := e.GetActivePolicies()
	if len(got) != 1 || got[0].ID != active.ID {
		t.Fatalf("active policies = %+v", got)
	}
}

func TestReloadPicksUpDirectoryChanges(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now().UTC()
	p := testPolicy(now)
	if err := e.SavePolicy(p, "tester"); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := e.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := e.GetPolicy(p.ID); !ok {
		t.Fatalf("expected policy to survive reload")
	}
}

func TestInitSamplesIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	n, err := e.InitSamples()
	if err != nil {
		t.Fatalf("init samples: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 samples written, got %d", n)
	}
	n2, err := e.InitSamples()
	if err != nil {
		t.Fatalf("init samples again: %v", err)
	}
	if n2 != 0 {
		t.Fatalf("expected second InitSamples to write nothing, got %d", n2)
	}
}

func TestResolveViolation(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now().UTC()
	p := testPolicy(now)
	if err := e.SavePolicy(p, "tester"); err != nil {
		t.Fatalf("save: %v", err)
	}
	data := map[string]any{"amount": 2000000, "initiator": "a", "approver": "a"}
	result := e.Evaluate(p.ID, data, "run-1", "block-1")
	if len(result.Violations) == 0 {
		t.Fatalf("expected violations")
	}

	target := result.Violations[0]
	if err := e.ResolveViolation(p.ID, target.ID, "reviewed and accepted"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	unresolved := e.UnresolvedViolations(p.ID)
	for _, v := range unresolved {
		if v.ID == target.ID {
			t.Fatalf("expected violation %s to be resolved", target.ID)
		}
	}
}
