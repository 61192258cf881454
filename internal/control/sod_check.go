package control

import "strings"

// Assignment is one user's granted roles and actions.
type Assignment struct {
	UserID  string   `json:"user_id"`
	Roles   []string `json:"roles"`
	Actions []string `json:"actions"`
}

// SoDConflict is one row of a segregation-of-duties matrix.
type SoDConflict struct {
	Rule       string   `json:"rule"`
	RolesAny   []string `json:"roles_any"`
	RolesAll   []string `json:"roles_all"`
	ActionsAny []string `json:"actions_any"`
	ActionsAll []string `json:"actions_all"`
}

// SoDViolation is one detected conflict for one user.
type SoDViolation struct {
	UserID   string         `json:"user_id"`
	Conflict map[string]any `json:"conflict"`
}

// CheckSegregationOfDuties evaluates each conflict rule in the matrix
// against every user's aggregated role/action assignments.
//
// "mutual_exclusion" fires when a user holds two or more of roles_any.
// "role_action_separation" fires when a user holds every role in
// roles_all together with either every action in actions_all, or any
// action in actions_any.
func CheckSegregationOfDuties(assignments []Assignment, conflicts []SoDConflict) ([]SoDViolation, map[string]int) {
	userRoles := make(map[string]map[string]bool)
	userActions := make(map[string]map[string]bool)
	for _, a := range assignments {
		if a.UserID == "" {
			continue
		}
		if _, ok := userRoles[a.UserID]; !ok {
			userRoles[a.UserID] = map[string]bool{}
			userActions[a.UserID] = map[string]bool{}
		}
		for _, r := range a.Roles {
			userRoles[a.UserID][r] = true
		}
		for _, act := range a.Actions {
			userActions[a.UserID][act] = true
		}
	}

	var violations []SoDViolation
	for _, c := range conflicts {
		ruleType := strings.ToLower(c.Rule)
		if ruleType == "" {
			ruleType = "mutual_exclusion"
		}
		for uid, rset := range userRoles {
			aset := userActions[uid]
			switch ruleType {
			case "mutual_exclusion":
				var hits []string
				for _, r := range c.RolesAny {
					if rset[r] {
						hits = append(hits, r)
					}
				}
				if len(hits) >= 2 {
					violations = append(violations, SoDViolation{
						UserID:   uid,
						Conflict: map[string]any{"rule": ruleType, "roles": hits},
					})
				}
			case "role_action_separation":
				if len(c.RolesAll) == 0 || !allPresent(c.RolesAll, rset) {
					continue
				}
				if len(c.ActionsAll) > 0 && allPresent(c.ActionsAll, aset) {
					violations = append(violations, SoDViolation{
						UserID:   uid,
						Conflict: map[string]any{"rule": ruleType, "roles": c.RolesAll, "actions": c.ActionsAll},
					})
				} else if len(c.ActionsAny) > 0 && anyPresent(c.ActionsAny, aset) {
					violations = append(violations, SoDViolation{
						UserID:   uid,
						Conflict: map[string]any{"rule": ruleType, "roles": c.RolesAll, "actions": c.ActionsAny},
					})
				}
			}
		}
	}

	return violations, map[string]int{"users": len(userRoles), "violations": len(violations)}
}

func allPresent(keys []string, set map[string]bool) bool {
	for _, k := range keys {
		if !set[k] {
			return false
		}
	}
	return true
}

func anyPresent(keys []string, set map[string]bool) bool {
	for _, k := range keys {
		if set[k] {
			return true
		}
	}
	return false
}
