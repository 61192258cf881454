package policy

import "testing"

func TestEvaluateExpressionViolation(t *testing.T) {
	e := &Engine{}
	rule := Rule{
		Name:       "high risk spend",
		Type:       RuleExpression,
		Severity:   SeverityHigh,
		Expression: `$amount > 500000 and $risk_score >= 80`,
	}
	data := map[string]any{"amount": 600000, "risk_score": 85}

	v, err := e.evaluateExpression(rule, data)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v == nil {
		t.Fatalf("expected a violation")
	}
}

func TestEvaluateExpressionNoViolation(t *testing.T) {
	e := &Engine{}
	rule := Rule{
		Name:       "high risk spend",
		Type:       RuleExpression,
		Severity:   SeverityHigh,
		Expression: `$amount > 500000`,
	}
	data := map[string]any{"amount": 100}

	v, err := e.evaluateExpression(rule, data)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v != nil {
		t.Fatalf("expected no violation, got %+v", v)
	}
}

func TestEvaluateExpressionMissingExpression(t *testing.T) {
	e := &Engine{}
	rule := Rule{Name: "broken", Type: RuleExpression}
	if _, err := e.evaluateExpression(rule, map[string]any{}); err == nil {
		t.Fatalf("expected error for empty expression")
	}
}

func TestSubstitutePlaceholders(t *testing.T) {
	got := substitutePlaceholders(`$amount > 500000 and $risk_score >= 80`)
	want := `input.data.amount > 500000 and input.data.risk_score >= 80`
	if got != want {
		t.Fatalf("substitutePlaceholders = %q, want %q", got, want)
	}
}
