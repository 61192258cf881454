package policy

import (
	"fmt"
	"time"
)

// ResolveViolation marks the first unresolved violation matching id under
// policyID as resolved, recording notes and the resolution time.
func (e *Engine) ResolveViolation(policyID, violationID, notes string) error {
	e.violMu.Lock()
	defer e.violMu.Unlock()

	violations, ok := e.violations[policyID]
	if !ok {
		return fmt.Errorf("policy: no violations recorded for policy %s", policyID)
	}
	for i := range violations {
		if violations[i].ID != violationID {
			continue
		}
		if violations[i].IsResolved() {
			return fmt.Errorf("policy: violation %s already resolved", violationID)
		}
		now := time.Now().UTC()
		violations[i].ResolvedAt = &now
		violations[i].ResolutionNotes = notes
		return nil
	}
	return fmt.Errorf("policy: violation %s not found for policy %s", violationID, policyID)
}

// UnresolvedViolations filters GetViolations(policyID) down to those not
// yet resolved.
func (e *Engine) UnresolvedViolations(policyID string) []Violation {
	all := e.GetViolations(policyID)
	out := make([]Violation, 0, len(all))
	for _, v := range all {
		if !v.IsResolved() {
			out = append(out, v)
		}
	}
	return out
}
