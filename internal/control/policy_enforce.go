package control

import (
	"fmt"
	"regexp"
	"strings"
)

// PolicyRule is one declarative rule evaluated by EnforcePolicy. Field
// usage depends on Type: threshold (Field, Op, Value), required
// (Fields), forbidden (ConditionField/ConditionOperator/ConditionValue),
// regex (Field, Pattern), unique (Field).
type PolicyRule struct {
	ID                string   `json:"id"`
	Type              string   `json:"type"`
	Field             string   `json:"field"`
	Fields            []string `json:"fields"`
	Op                string   `json:"op"`
	Value             any      `json:"value"`
	ConditionField    string   `json:"condition_field"`
	ConditionOperator string   `json:"condition_operator"`
	ConditionValue    any      `json:"condition_value"`
	Pattern           string   `json:"pattern"`
}

// Policy is a named set of enforcement rules plus allow-listed exceptions.
type Policy struct {
	Rules     []PolicyRule `json:"rules"`
	AllowList []string     `json:"allow_list"`
}

// PolicyViolation is one rule breach against one item.
type PolicyViolation struct {
	RuleID  string         `json:"rule_id"`
	ItemRef any            `json:"item_ref"`
	Details map[string]any `json:"details"`
}

// EnforcementResult is the output of EnforcePolicy.
type EnforcementResult struct {
	Violations []PolicyViolation `json:"violations"`
	Passed     bool              `json:"passed"`
	Summary    map[string]any    `json:"summary"`
}

// EnforcePolicy evaluates policy's rules against every item. In strict
// mode (the default) any violation fails the result; in lenient mode
// violations are still reported but Passed stays true.
func EnforcePolicy(items []map[string]any, policy Policy, strict bool) EnforcementResult {
	allow := make(map[string]bool, len(policy.AllowList))
	for _, a := range policy.AllowList {
		allow[a] = true
	}

	uniqueSeen := make(map[string]map[string]bool)
	var violations []PolicyViolation

	for idx, item := range items {
		itemRef := itemRef(item, idx)
		allowHit := isAllowListed(item, itemRef, allow)

		for _, rule := range policy.Rules {
			rid := rule.ID
			if rid == "" {
				rid = fmt.Sprintf("r%d", idx)
			}
			switch strings.ToLower(rule.Type) {
			case "threshold":
				if v := evalThresholdRule(item, rule); v != nil && !allowHit {
					v.RuleID, v.ItemRef = rid, itemRef
					violations = append(violations, *v)
				}
			case "required":
				if v := evalRequiredRule(item, rule); v != nil && !allowHit {
					v.RuleID, v.ItemRef = rid, itemRef
					violations = append(violations, *v)
				}
			case "forbidden":
				if v := evalForbiddenRule(item, rule); v != nil && !allowHit {
					v.RuleID, v.ItemRef = rid, itemRef
					violations = append(violations, *v)
				}
			case "regex":
				if v := evalRegexRule(item, rule); v != nil && !allowHit {
					v.RuleID, v.ItemRef = rid, itemRef
					violations = append(violations, *v)
				}
			case "unique":
				if v := evalUniqueRule(item, rule, uniqueSeen); v != nil && !allowHit {
					v.RuleID, v.ItemRef = rid, itemRef
					violations = append(violations, *v)
				}
			}
		}
	}

	passed := len(violations) == 0
	if !strict && len(violations) > 0 {
		passed = true
	}

	return EnforcementResult{
		Violations: violations,
		Passed:     passed,
		Summary: map[string]any{
			"items":      len(items),
			"rules":      len(policy.Rules),
			"violations": len(violations),
		},
	}
}

func itemRef(item map[string]any, idx int) any {
	for _, k := range []string{"id", "_id"} {
		if v, ok := item[k]; ok {
			return v
		}
	}
	return idx
}

func isAllowListed(item map[string]any, itemRef any, allow map[string]bool) bool {
	candidates := []string{fmt.Sprintf("id:%v", itemRef)}
	for _, k := range []string{"vendor_id", "po_no", "invoice_no"} {
		if v, ok := caseInsensitiveGet(item, k); ok {
			candidates = append(candidates, fmt.Sprintf("%s:%v", k, v))
		}
	}
	for _, c := range candidates {
		if allow[c] {
			return true
		}
	}
	return false
}

func caseInsensitiveGet(item map[string]any, key string) (any, bool) {
	for k, v := range item {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func evalThresholdRule(item map[string]any, rule PolicyRule) *PolicyViolation {
	left, _ := caseInsensitiveGet(item, rule.Field)
	lf, err1 := toFloatLocal(left)
	rv, err2 := toFloatLocal(rule.Value)
	if err1 != nil || err2 != nil {
		return nil
	}
	op := strings.ToLower(rule.Op)
	if op == "" {
		op = "lte"
	}
	ok := true
	switch op {
	case "lt":
		ok = lf < rv
	case "lte":
		ok = lf <= rv
	case "gt":
		ok = lf > rv
	case "gte":
		ok = lf >= rv
	case "eq":
		ok = lf == rv
	case "ne":
		ok = lf != rv
	}
	if ok {
		return nil
	}
	return &PolicyViolation{Details: map[string]any{"field": rule.Field, "left": left, "op": op, "value": rule.Value}}
}

func evalRequiredRule(item map[string]any, rule PolicyRule) *PolicyViolation {
	fields := rule.Fields
	if len(fields) == 0 && rule.Field != "" {
		fields = []string{rule.Field}
	}
	var missing []string
	for _, f := range fields {
		v, ok := caseInsensitiveGet(item, f)
		if !ok || v == nil || v == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &PolicyViolation{Details: map[string]any{"missing": missing}}
}

func evalForbiddenRule(item map[string]any, rule PolicyRule) *PolicyViolation {
	left, _ := caseInsensitiveGet(item, rule.ConditionField)
	op := strings.ToLower(rule.ConditionOperator)
	if op == "" {
		op = "eq"
	}
	hit := false
	switch op {
	case "eq":
		hit = fmt.Sprint(left) == fmt.Sprint(rule.ConditionValue)
	case "in":
		if values, ok := rule.ConditionValue.([]any); ok {
			for _, v := range values {
				if fmt.Sprint(v) == fmt.Sprint(left) {
					hit = true
					break
				}
			}
		}
	case "contains":
		hit = strings.Contains(fmt.Sprint(left), fmt.Sprint(rule.ConditionValue))
	}
	if !hit {
		return nil
	}
	return &PolicyViolation{Details: map[string]any{"field": rule.ConditionField, "operator": op, "value": rule.ConditionValue}}
}

func evalRegexRule(item map[string]any, rule PolicyRule) *PolicyViolation {
	text, ok := caseInsensitiveGet(item, rule.Field)
	if !ok || text == nil {
		return &PolicyViolation{Details: map[string]any{"field": rule.Field, "reason": "missing"}}
	}
	pattern := rule.Pattern
	if pattern == "" {
		pattern = ".*"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	if re.MatchString(fmt.Sprint(text)) {
		return nil
	}
	return &PolicyViolation{Details: map[string]any{"field": rule.Field, "pattern": pattern}}
}

func evalUniqueRule(item map[string]any, rule PolicyRule, seen map[string]map[string]bool) *PolicyViolation {
	val, _ := caseInsensitiveGet(item, rule.Field)
	key := fmt.Sprint(val)
	bucket, ok := seen[rule.Field]
	if !ok {
		bucket = map[string]bool{}
		seen[rule.Field] = bucket
	}
	if bucket[key] {
		return &PolicyViolation{Details: map[string]any{"field": rule.Field, "duplicate": val}}
	}
	bucket[key] = true
	return nil
}
