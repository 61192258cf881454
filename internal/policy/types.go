// Package policy implements the policy-as-code engine: declarative rule
// sets loaded from a directory, evaluated against data records, producing
// categorized violations.
package policy

import "time"

// PolicyType classifies what a policy governs.
type PolicyType string

const (
	TypeCompliance   PolicyType = "compliance"
	TypeBusinessRule PolicyType = "business_rule"
	TypeSecurity     PolicyType = "security"
	TypeFinancial    PolicyType = "financial"
	TypeOperational  PolicyType = "operational"
	TypeAudit        PolicyType = "audit"
)

// RuleType selects the evaluator a PolicyRule dispatches to.
type RuleType string

const (
	RuleExpression       RuleType = "expression"
	RuleThreshold        RuleType = "threshold"
	RuleApprovalRequired RuleType = "approval_required"
	RuleSegregationDuty  RuleType = "segregation_duty"
)

// RuleSeverity orders how serious a violation of a rule is.
type RuleSeverity string

const (
	SeverityCritical RuleSeverity = "critical"
	SeverityHigh     RuleSeverity = "high"
	SeverityMedium   RuleSeverity = "medium"
	SeverityLow      RuleSeverity = "low"
	SeverityInfo     RuleSeverity = "info"
)

// PolicyStatus is the lifecycle state of a Policy.
type PolicyStatus string

const (
	StatusDraft      PolicyStatus = "draft"
	StatusActive     PolicyStatus = "active"
	StatusDeprecated PolicyStatus = "deprecated"
	StatusSuspended  PolicyStatus = "suspended"
)

// ViolationType classifies the shape of a violation, independent of which
// rule produced it (rule-level exceptions always surface as rule_violation).
type ViolationType string

const (
	ViolationRuleViolation     ViolationType = "rule_violation"
	ViolationThresholdExceeded ViolationType = "threshold_exceeded"
	ViolationMissingApproval   ViolationType = "missing_approval"
	ViolationUnauthorizedAccess ViolationType = "unauthorized_access"
	ViolationDataQuality       ViolationType = "data_quality"
	ViolationSegregationDuty   ViolationType = "segregation_duty"
)

// Rule is one evaluable clause within a Policy.
type Rule struct {
	ID          string         `json:"rule_id" yaml:"rule_id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Type        RuleType       `json:"rule_type" yaml:"rule_type"`
	Expression  string         `json:"expression,omitempty" yaml:"expression,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Severity    RuleSeverity   `json:"severity" yaml:"severity"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Policy is a named, versioned bundle of rules.
type Policy struct {
	ID            string         `json:"policy_id" yaml:"policy_id"`
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Type          PolicyType     `json:"policy_type" yaml:"policy_type"`
	Version       string         `json:"version" yaml:"version"`
	Rules         []Rule         `json:"rules" yaml:"rules"`
	Metadata      map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Tags          []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Department    string         `json:"department,omitempty" yaml:"department,omitempty"`
	Owner         string         `json:"owner,omitempty" yaml:"owner,omitempty"`
	Status        PolicyStatus   `json:"status" yaml:"status"`
	EffectiveDate time.Time      `json:"effective_date" yaml:"effective_date"`
	ExpiryDate    time.Time      `json:"expiry_date" yaml:"expiry_date"`
}

// ActiveRules returns the enabled rules.
func (p *Policy) ActiveRules() []Rule {
	out := make([]Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// IsEffective reports whether the policy is active and now falls within
// [EffectiveDate, ExpiryDate).
func (p *Policy) IsEffective(now time.Time) bool {
	if p.Status != StatusActive {
		return false
	}
	if !p.EffectiveDate.IsZero() && now.Before(p.EffectiveDate) {
		return false
	}
	if !p.ExpiryDate.IsZero() && !now.Before(p.ExpiryDate) {
		return false
	}
	return true
}

// Violation records one categorized failure of a rule against a data
// snapshot.
type Violation struct {
	ID             string         `json:"violation_id"`
	PolicyID       string         `json:"policy_id"`
	RuleID         string         `json:"rule_id"`
	Type           ViolationType  `json:"violation_type"`
	Severity       RuleSeverity   `json:"severity"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	ViolatedData   map[string]any `json:"violated_data,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	DetectedAt     time.Time      `json:"detected_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	ResolutionNotes string        `json:"resolution_notes,omitempty"`
	RunID          string         `json:"run_id,omitempty"`
	BlockID        string         `json:"block_id,omitempty"`
}

// IsResolved reports whether the violation has been marked resolved.
func (v *Violation) IsResolved() bool { return v.ResolvedAt != nil }

// ExecutionResult is the outcome of one Evaluate call.
type ExecutionResult struct {
	PolicyID       string         `json:"policy_id"`
	ExecutionID    string         `json:"execution_id"`
	ExecutedAt     time.Time      `json:"executed_at"`
	Success        bool           `json:"success"`
	RulesEvaluated int            `json:"rules_evaluated"`
	RulesPassed    int            `json:"rules_passed"`
	RulesFailed    int            `json:"rules_failed"`
	Violations     []Violation    `json:"violations"`
	DurationMS     int64          `json:"execution_time_ms"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
}

// AddViolation appends v and increments RulesFailed.
func (r *ExecutionResult) AddViolation(v Violation) {
	r.Violations = append(r.Violations, v)
	r.RulesFailed++
}

// AuditLog records a policy management action ("saved" or "executed").
type AuditLog struct {
	ID       string         `json:"log_id"`
	PolicyID string         `json:"policy_id"`
	Action   string         `json:"action"`
	Actor    string         `json:"actor"`
	At       time.Time      `json:"timestamp"`
	Details  map[string]any `json:"details,omitempty"`
}
