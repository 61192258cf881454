package policy

import (
	"context"
	"fmt"
	"regexp"

	"github.com/open-policy-agent/opa/v1/rego"
)

// placeholderPattern matches a `$name` placeholder in an expression rule,
// per spec §4.E: "textual expression with $name placeholders substituted
// from data".
var placeholderPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// substitutePlaceholders rewrites every `$name` placeholder in expr to
// `input.data.name` so the surrounding Rego query can bind it.
func substitutePlaceholders(expr string) string {
	return placeholderPattern.ReplaceAllString(expr, "input.data.$1")
}

// evaluateExpression runs rule.Expression, with its `$name` placeholders
// substituted for input.data.name, as a Rego boolean query against data.
// The rule text is a bare boolean expression that the query binds to a
// variable named "violation" -- e.g. "$amount > 1000000" becomes
// "violation := (input.data.amount > 1000000)". This is the restricted
// expression sub-grammar resolving the "how should the expression rule type
// be evaluated safely" open question: Rego's policy language is already a
// dependency and gives a sandboxed, side-effect-free evaluator instead of a
// hand-rolled parser.
func (e *Engine) evaluateExpression(rule Rule, data map[string]any) (*Violation, error) {
	if rule.Expression == "" {
		return nil, fmt.Errorf("expression rule %q has no expression", rule.Name)
	}

	query := fmt.Sprintf(`violation := (%s)`, substitutePlaceholders(rule.Expression))
	r := rego.New(
		rego.Query(query),
		rego.Input(map[string]any{"data": data}),
	)

	rs, err := r.Eval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("evaluating expression %q: %w", rule.Expression, err)
	}
	if len(rs) == 0 || len(rs[0].Bindings) == 0 {
		return nil, fmt.Errorf("expression %q produced no result", rule.Expression)
	}

	raw, ok := rs[0].Bindings["violation"]
	if !ok {
		return nil, fmt.Errorf("expression %q did not bind \"violation\"", rule.Expression)
	}
	breached, ok := raw.(bool)
	if !ok {
		return nil, fmt.Errorf("expression %q must evaluate to a boolean, got %T", rule.Expression, raw)
	}

	if !breached {
		return nil, nil
	}
	return &Violation{
		Type:         ViolationRuleViolation,
		Severity:     rule.Severity,
		Title:        fmt.Sprintf("expression rule %q violated", rule.Name),
		Description:  fmt.Sprintf("expression %q evaluated true against submitted data", rule.Expression),
		ViolatedData: data,
	}, nil
}
