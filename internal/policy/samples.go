package policy

import "time"

// SamplePolicies returns the two bundled example policies from the
// original control library: a purchase-approval threshold policy and a
// payment segregation-of-duties policy. InitSamples writes them into an
// engine's directory if not already present, for first-run bootstrapping.
func SamplePolicies(now time.Time) []*Policy {
	return []*Policy{
		{
			ID:          "pol-purchase-approval-threshold",
			Name:        "Purchase Approval Threshold",
			Description: "Flags purchases above one million and any purchase without an approval record.",
			Type:        TypeFinancial,
			Version:     "1.0.0",
			Status:      StatusActive,
			Owner:       "finance-controls",
			Tags:        []string{"procurement", "approval"},
			EffectiveDate: now,
			Rules: []Rule{
				{
					ID:       "rule-threshold-amount",
					Name:     "Purchase amount threshold",
					Type:     RuleThreshold,
					Severity: SeverityCritical,
					Enabled:  true,
					Parameters: map[string]any{
						"field":     "amount",
						"operator":  ">",
						"threshold": 1000000,
					},
					CreatedAt: now,
					UpdatedAt: now,
				},
				{
					ID:        "rule-approval-required",
					Name:      "Approval record required",
					Type:      RuleApprovalRequired,
					Severity:  SeverityHigh,
					Enabled:   true,
					CreatedAt: now,
					UpdatedAt: now,
				},
			},
		},
		{
			ID:          "pol-payment-segregation-of-duties",
			Name:        "Payment Segregation of Duties",
			Description: "The initiator of a payment must not also be its approver.",
			Type:        TypeFinancial,
			Version:     "1.0.0",
			Status:      StatusActive,
			Owner:       "finance-controls",
			Tags:        []string{"payments", "sod"},
			EffectiveDate: now,
			Rules: []Rule{
				{
					ID:        "rule-sod-initiator-approver",
					Name:      "Initiator must differ from approver",
					Type:      RuleSegregationDuty,
					Severity:  SeverityCritical,
					Enabled:   true,
					CreatedAt: now,
					UpdatedAt: now,
				},
			},
		},
	}
}

// InitSamples persists SamplePolicies into the engine's policy directory,
// skipping any id already present. Returns the number of policies written.
func (e *Engine) InitSamples() (int, error) {
	now := time.Now().UTC()
	written := 0
	for _, p := range SamplePolicies(now) {
		if _, exists := e.GetPolicy(p.ID); exists {
			continue
		}
		if err := e.SavePolicy(p, "init-samples"); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
