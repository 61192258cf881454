// Package control implements the approval, segregation-of-duties,
// sampling, and policy-enforcement blocks used to evaluate internal
// control evidence against a declared route, matrix, or rule set.
package control

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// ApprovalRule describes how a level is satisfied: "any" (>=1 approve),
// "all" (every explicit approver approves), or "n_of_m" (>= N approve).
type ApprovalRule struct {
	Type string `json:"type"`
	N    int    `json:"n"`
}

// ApprovalLevel is one ordered step of a route definition.
type ApprovalLevel struct {
	ID        string       `json:"id"`
	Approvers []string     `json:"approvers"`
	Rule      ApprovalRule `json:"rule"`
}

// RouteDefinition is the ordered set of levels a decision set is checked
// against.
type RouteDefinition struct {
	Levels []ApprovalLevel `json:"levels"`
}

// Decision is one recorded approve/reject against a level. Timestamp
// accepts either an RFC3339 string or a numeric epoch-seconds value, per
// spec §4.K "timestamps coerced to epoch seconds".
type Decision struct {
	LevelID    string `json:"level_id"`
	ApproverID string `json:"approver_id"`
	Decision   string `json:"decision"`
	Comment    string `json:"comment,omitempty"`
	Timestamp  any    `json:"timestamp,omitempty"`
}

// ApprovalViolation is a detected route-integrity deviation.
type ApprovalViolation struct {
	Type       string `json:"type"`
	LevelID    string `json:"level_id"`
	ApproverID string `json:"approver_id,omitempty"`
}

// LevelLogEntry is one level's normalized outcome in the route log.
type LevelLogEntry struct {
	ID        string             `json:"id"`
	Rule      ApprovalRule       `json:"rule"`
	Approvers []string           `json:"approvers"`
	Decisions []Decision         `json:"decisions"`
	Status    string             `json:"status"`
	Detail    map[string]any     `json:"detail"`
}

// ApprovalResult is the output of EvaluateApproval.
type ApprovalResult struct {
	Approved   bool                `json:"approved"`
	RouteLog   []LevelLogEntry     `json:"route_log"`
	Violations []ApprovalViolation `json:"violations"`
}

type normalizedDecision struct {
	Decision
	ts float64
}

// EvaluateApproval normalizes decisions (keeping the latest by
// level+approver), evaluates each level's rule in order, and reports
// unauthorized-approver, out-of-order, and incomplete-level violations.
func EvaluateApproval(route RouteDefinition, decisions []Decision) ApprovalResult {
	levelOrder := make(map[string]int, len(route.Levels))
	for idx, l := range route.Levels {
		levelOrder[l.ID] = idx
	}

	latest := make(map[[2]string]normalizedDecision)
	for _, d := range decisions {
		if d.LevelID == "" || d.ApproverID == "" {
			continue
		}
		ts := parseDecisionTimestamp(d.Timestamp)
		key := [2]string{d.LevelID, d.ApproverID}
		if cur, ok := latest[key]; !ok || ts >= cur.ts {
			latest[key] = normalizedDecision{Decision: d, ts: ts}
		}
	}

	perLevel := make(map[string][]normalizedDecision)
	for _, l := range route.Levels {
		perLevel[l.ID] = []normalizedDecision{}
	}
	for key, nd := range latest {
		lid := key[0]
		if _, ok := perLevel[lid]; ok {
			perLevel[lid] = append(perLevel[lid], nd)
		}
	}

	var violations []ApprovalViolation
	routeLog := make([]LevelLogEntry, 0, len(route.Levels))

	for _, level := range route.Levels {
		decs := perLevel[level.ID]
		ok, detail, unauthorized := satisfyRule(level, decs)
		for _, aid := range unauthorized {
			violations = append(violations, ApprovalViolation{Type: "unauthorized_approver", LevelID: level.ID, ApproverID: aid})
		}

		status := "pending"
		if ok {
			status = "satisfied"
		} else if detail["reason"] == "rejected" {
			status = "rejected"
		}

		sorted := make([]normalizedDecision, len(decs))
		copy(sorted, decs)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ts < sorted[j].ts })
		logDecisions := make([]Decision, 0, len(sorted))
		for _, nd := range sorted {
			logDecisions = append(logDecisions, nd.Decision)
		}

		routeLog = append(routeLog, LevelLogEntry{
			ID:        level.ID,
			Rule:      level.Rule,
			Approvers: level.Approvers,
			Decisions: logDecisions,
			Status:    status,
			Detail:    detail,
		})
	}

	firstUnsatisfiedIdx := -1
	for idx, entry := range routeLog {
		if entry.Status != "satisfied" {
			firstUnsatisfiedIdx = idx
			break
		}
	}
	if firstUnsatisfiedIdx >= 0 {
		for lid, decs := range perLevel {
			lidx, ok := levelOrder[lid]
			if !ok {
				lidx = 1 << 30
			}
			if lidx > firstUnsatisfiedIdx {
				for _, d := range decs {
					violations = append(violations, ApprovalViolation{Type: "order_violation", LevelID: lid, ApproverID: d.ApproverID})
				}
			}
		}
	}

	hasReject := false
	allOK := true
	for _, entry := range routeLog {
		if entry.Status == "rejected" {
			hasReject = true
		}
		if entry.Status != "satisfied" {
			allOK = false
		}
	}
	for _, entry := range routeLog {
		if entry.Status == "pending" {
			violations = append(violations, ApprovalViolation{Type: "level_incomplete", LevelID: entry.ID})
		}
	}

	return ApprovalResult{
		Approved:   allOK && !hasReject,
		RouteLog:   routeLog,
		Violations: violations,
	}
}

func satisfyRule(level ApprovalLevel, decs []normalizedDecision) (bool, map[string]any, []string) {
	ruleType := strings.ToLower(level.Rule.Type)
	if ruleType == "" {
		ruleType = "any"
	}

	explicitUsers := make([]string, 0, len(level.Approvers))
	for _, a := range level.Approvers {
		if !strings.HasPrefix(a, "role:") {
			explicitUsers = append(explicitUsers, a)
		}
	}
	explicitSet := make(map[string]bool, len(explicitUsers))
	for _, u := range explicitUsers {
		explicitSet[u] = true
	}

	var approves, rejects []normalizedDecision
	var unauthorized []string
	for _, d := range decs {
		if len(explicitUsers) > 0 && !explicitSet[d.ApproverID] {
			unauthorized = append(unauthorized, d.ApproverID)
		}
		switch strings.ToLower(d.Decision.Decision) {
		case "approve":
			approves = append(approves, d)
		case "reject":
			rejects = append(rejects, d)
		}
	}

	if len(rejects) > 0 {
		return false, map[string]any{"reason": "rejected", "rejects": len(rejects)}, unauthorized
	}

	switch ruleType {
	case "all":
		got := make(map[string]bool, len(approves))
		for _, d := range approves {
			got[d.ApproverID] = true
		}
		var missing []string
		for _, u := range explicitUsers {
			if !got[u] {
				missing = append(missing, u)
			}
		}
		sort.Strings(missing)
		return len(missing) == 0, map[string]any{"missing_explicit": missing}, unauthorized
	case "n_of_m":
		n := level.Rule.N
		if n <= 0 {
			n = 1
		}
		return len(approves) >= n, map[string]any{"n": n, "approves": len(approves)}, unauthorized
	default:
		return len(approves) >= 1, map[string]any{"approves": len(approves)}, unauthorized
	}
}

// parseDecisionTimestamp coerces a decision timestamp to epoch seconds.
// Accepts a numeric epoch (JSON number, decoded as float64) or an RFC3339
// string, matching approval.py's acceptance of both forms.
func parseDecisionTimestamp(raw any) float64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if v == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		normalized := strings.ReplaceAll(v, "Z", "+00:00")
		t, err := time.Parse(time.RFC3339, normalized)
		if err != nil {
			return 0
		}
		return float64(t.UnixNano()) / 1e9
	default:
		return 0
	}
}
