package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keiri-audit/engine/internal/vault"
	"go.yaml.in/yaml/v3"
)

// Engine loads, indexes, and evaluates policies from a directory.
type Engine struct {
	dir       string
	mu        sync.RWMutex
	policies  map[string]*Policy
	vault     *vault.Vault
	logger    *slog.Logger
	auditLogs []AuditLog
	violations map[string][]Violation // policy_id -> violations seen
	violMu    sync.Mutex
}

// NewEngine loads every *.json, *.yaml and *.yml file in dir. A malformed file logs a
// warning and is skipped; it never prevents others from loading.
func NewEngine(dir string, v *vault.Vault, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		dir:        dir,
		policies:   make(map[string]*Policy),
		vault:      v,
		logger:     logger,
		violations: make(map[string][]Violation),
	}
	if err := e.loadFromDir(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadFromDir() error {
	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return fmt.Errorf("policy: creating policy dir %s: %w", e.dir, err)
	}
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return fmt.Errorf("policy: reading policy dir %s: %w", e.dir, err)
	}

	loaded := make(map[string]*Policy)
	for _, de := range entries {
		name := de.Name()
		isJSON := strings.HasSuffix(name, ".json")
		isYAML := strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
		if de.IsDir() || !(isJSON || isYAML) {
			continue
		}
		path := filepath.Join(e.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			e.logger.Warn("policy: failed to read file, skipping", "path", path, "error", err)
			continue
		}
		var p Policy
		var unmarshalErr error
		if isYAML {
			unmarshalErr = yaml.Unmarshal(data, &p)
		} else {
			unmarshalErr = json.Unmarshal(data, &p)
		}
		if unmarshalErr != nil {
			e.logger.Warn("policy: malformed policy file, skipping", "path", path, "error", unmarshalErr)
			continue
		}
		loaded[p.ID] = &p
	}

	e.mu.Lock()
	e.policies = loaded
	e.mu.Unlock()
	return nil
}

// Reload re-reads the policy directory, replacing the in-memory index.
func (e *Engine) Reload() error { return e.loadFromDir() }

// GetPolicy returns a policy by id.
func (e *Engine) GetPolicy(id string) (*Policy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.policies[id]
	return p, ok
}

// GetActivePolicies returns every policy whose status is active.
func (e *Engine) GetActivePolicies() []*Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Policy
	for _, p := range e.policies {
		if p.Status == StatusActive {
			out = append(out, p)
		}
	}
	return out
}

// SavePolicy writes p to <dir>/<id>.json, updates the in-memory index, and
// appends a "saved" audit log entry.
func (e *Engine) SavePolicy(p *Policy, actor string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("policy: marshaling policy %s: %w", p.ID, err)
	}
	path := filepath.Join(e.dir, p.ID+".json")
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("policy: writing policy %s: %w", p.ID, err)
	}

	e.mu.Lock()
	e.policies[p.ID] = p
	e.mu.Unlock()

	e.appendAuditLog(AuditLog{
		ID:       uuid.NewString(),
		PolicyID: p.ID,
		Action:   "saved",
		Actor:    actor,
		At:       time.Now().UTC(),
		Details:  map[string]any{"name": p.Name, "version": p.Version},
	})
	return nil
}

func (e *Engine) appendAuditLog(log AuditLog) {
	e.mu.Lock()
	e.auditLogs = append(e.auditLogs, log)
	e.mu.Unlock()
}

// AuditLogs returns every management action logged so far.
func (e *Engine) AuditLogs() []AuditLog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]AuditLog(nil), e.auditLogs...)
}

// controlResultRetentionDays is 2555 days (~7 years) from spec §4.E step 5.
const controlResultRetentionDays = 2555

// Evaluate resolves policyID, checks effectiveness, runs each enabled
// rule, and (if a vault is attached) persists the whole result as a
// control_result evidence record.
func (e *Engine) Evaluate(policyID string, data map[string]any, runID, blockID string) *ExecutionResult {
	start := time.Now()
	result := &ExecutionResult{
		PolicyID:    policyID,
		ExecutionID: uuid.NewString(),
		ExecutedAt:  start,
		Context:     data,
	}

	policy, ok := e.GetPolicy(policyID)
	if !ok {
		result.Success = false
		result.ErrorMessage = "policy not found"
		return result
	}
	if !policy.IsEffective(time.Now().UTC()) {
		result.Success = false
		result.ErrorMessage = "policy not effective"
		return result
	}

	for _, rule := range policy.ActiveRules() {
		result.RulesEvaluated++
		violation, err := e.evaluateRule(policy, rule, data)
		if err != nil {
			result.AddViolation(Violation{
				ID:          uuid.NewString(),
				PolicyID:    policy.ID,
				RuleID:      rule.ID,
				Type:        ViolationRuleViolation,
				Severity:    SeverityHigh,
				Title:       "rule evaluation error",
				Description: err.Error(),
				DetectedAt:  time.Now().UTC(),
				RunID:       runID,
				BlockID:     blockID,
			})
			continue
		}
		if violation != nil {
			violation.ID = uuid.NewString()
			violation.PolicyID = policy.ID
			violation.RuleID = rule.ID
			violation.DetectedAt = time.Now().UTC()
			violation.RunID = runID
			violation.BlockID = blockID
			result.AddViolation(*violation)
		} else {
			result.RulesPassed++
		}
	}

	result.Success = true
	result.DurationMS = time.Since(start).Milliseconds()

	e.appendAuditLog(AuditLog{
		ID:       uuid.NewString(),
		PolicyID: policy.ID,
		Action:   "executed",
		Actor:    blockID,
		At:       time.Now().UTC(),
		Details:  map[string]any{"violations": len(result.Violations)},
	})
	e.recordViolations(policy.ID, result.Violations)

	if e.vault != nil {
		_, err := e.vault.Store(result, vault.StoreOptions{
			Kind:           vault.KindControlResult,
			RunID:          runID,
			BlockID:        blockID,
			RetentionUntil: time.Now().UTC().AddDate(0, 0, controlResultRetentionDays),
		})
		if err != nil {
			e.logger.Warn("policy: failed to store execution result as evidence", "error", err)
		}
	}

	return result
}

func (e *Engine) recordViolations(policyID string, violations []Violation) {
	if len(violations) == 0 {
		return
	}
	e.violMu.Lock()
	defer e.violMu.Unlock()
	e.violations[policyID] = append(e.violations[policyID], violations...)
}

// GetViolations returns every violation recorded for policyID across all
// evaluations this engine instance has run. Unlike the Python source's
// stub (which always returned empty), this is a real in-memory index;
// see SPEC_FULL.md §4.
func (e *Engine) GetViolations(policyID string) []Violation {
	e.violMu.Lock()
	defer e.violMu.Unlock()
	return append([]Violation(nil), e.violations[policyID]...)
}

// evaluateRule dispatches by rule type. A returned (nil, nil) means the
// rule passed; (violation, nil) means it failed; (nil, err) means the
// rule itself could not be evaluated (becomes a synthetic rule_violation
// at the caller, not a block failure).
func (e *Engine) evaluateRule(policy *Policy, rule Rule, data map[string]any) (*Violation, error) {
	switch rule.Type {
	case RuleThreshold:
		return evaluateThreshold(rule, data)
	case RuleExpression:
		return e.evaluateExpression(rule, data)
	case RuleApprovalRequired:
		return evaluateApprovalRequired(rule, data)
	case RuleSegregationDuty:
		return evaluateSegregationDuty(rule, data)
	default:
		return nil, fmt.Errorf("unknown rule type %q", rule.Type)
	}
}

func evaluateThreshold(rule Rule, data map[string]any) (*Violation, error) {
	field, _ := rule.Parameters["field"].(string)
	operator, _ := rule.Parameters["operator"].(string)
	if operator == "" {
		operator = "=="
	}
	raw, ok := data[field]
	if !ok {
		return &Violation{
			Type:        ViolationRuleViolation,
			Severity:    rule.Severity,
			Title:       fmt.Sprintf("missing field %q", field),
			Description: fmt.Sprintf("threshold rule %q references missing field %q", rule.Name, field),
			ViolatedData: data,
		}, nil
	}
	value, err := toFloat(raw)
	if err != nil {
		return nil, fmt.Errorf("coercing field %q: %w", field, err)
	}
	threshold, err := toFloat(rule.Parameters["threshold"])
	if err != nil {
		return nil, fmt.Errorf("coercing threshold: %w", err)
	}

	// Violation fires when the comparison is TRUE -- the rule names the
	// condition that constitutes a breach, not the condition that passes.
	breached := false
	switch operator {
	case ">":
		breached = value > threshold
	case ">=":
		breached = value >= threshold
	case "<":
		breached = value < threshold
	case "<=":
		breached = value <= threshold
	case "==":
		breached = value == threshold
	default:
		return nil, fmt.Errorf("unsupported threshold operator %q", operator)
	}

	if !breached {
		return nil, nil
	}
	return &Violation{
		Type:        ViolationThresholdExceeded,
		Severity:    rule.Severity,
		Title:       fmt.Sprintf("%s %s %v", field, operator, threshold),
		Description: fmt.Sprintf("field %q value %v breaches threshold (%s %v)", field, value, operator, threshold),
		ViolatedData: data,
	}, nil
}

func evaluateApprovalRequired(rule Rule, data map[string]any) (*Violation, error) {
	status, _ := data["approval_status"].(string)
	if status == "approved" {
		return nil, nil
	}
	return &Violation{
		Type:        ViolationMissingApproval,
		Severity:    rule.Severity,
		Title:       "missing approval",
		Description: fmt.Sprintf("expected approval_status == \"approved\", got %q", status),
		ViolatedData: data,
	}, nil
}

func evaluateSegregationDuty(rule Rule, data map[string]any) (*Violation, error) {
	initiator, hasInit := data["initiator"]
	approver, hasApprove := data["approver"]
	if !hasInit || !hasApprove {
		return nil, nil
	}
	if fmt.Sprint(initiator) != fmt.Sprint(approver) {
		return nil, nil
	}
	return &Violation{
		Type:        ViolationSegregationDuty,
		Severity:    rule.Severity,
		Title:       "initiator and approver are the same user",
		Description: fmt.Sprintf("initiator and approver both resolve to %q", initiator),
		ViolatedData: data,
	}, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("cannot coerce %T to float", v)
	}
}
