package approval

import (
	"fmt"

	"github.com/allowly/allowly-api/internal/domain/limits"
	"github.com/allowly/allowly-api/internal/domain/policy"
)

// warnThreshold is the used fraction above which a limit warning is
// attached to an otherwise allowed check.
const warnThreshold = 0.8

// CheckResult is the outcome of evaluating a proposed spend.
type CheckResult struct {
	CanSpend         bool     `json:"can_spend"`
	RequiresApproval bool     `json:"requires_approval"`
	BlockReason      string   `json:"block_reason,omitempty"`
	Warnings         []string `json:"warnings"`
}

func deny(reason string) CheckResult {
	return CheckResult{CanSpend: false, BlockReason: reason, Warnings: []string{}}
}

// Evaluate decides allow/deny/needs-approval for amount against a fully
// materialized settings snapshot and the current window trackers.
// Pure: no side effects, first decisive rule wins, later rules only add
// warnings once allowed.
func Evaluate(settings *policy.Settings, trackers []limits.Tracker, amount int64, categoryID *string) CheckResult {
	if !settings.IsEnabled {
		return CheckResult{CanSpend: true, Warnings: []string{}}
	}

	if settings.IsPaused {
		reason := "spending is paused"
		if settings.PauseReason.Valid && settings.PauseReason.String != "" {
			reason = settings.PauseReason.String
		}
		return deny(reason)
	}

	if settings.MaxSinglePurchase.Valid && amount > settings.MaxSinglePurchase.Int64 {
		return deny(fmt.Sprintf("amount exceeds the maximum single purchase of %s", formatAmount(settings.MaxSinglePurchase.Int64)))
	}

	// Category rule handling. A RequiresApproval restriction forces
	// approval regardless of thresholds; a category threshold replaces
	// the global one for this category.
	forced := false
	threshold := settings.ApprovalThreshold
	if categoryID != nil {
		if rule := settings.RuleFor(*categoryID); rule != nil {
			switch rule.Restriction {
			case policy.RestrictionBlocked:
				reason := rule.Reason
				if reason == "" {
					reason = "this category is blocked"
				}
				return deny(reason)
			case policy.RestrictionRequiresApproval:
				forced = true
			}
			if rule.CategoryThreshold.Valid {
				threshold = rule.CategoryThreshold.Int64
			}
		}
	}

	warnings := []string{}
	for i := range trackers {
		t := &trackers[i]
		projected := t.SpentAmount + t.PendingAmount + amount
		if projected > t.LimitAmount {
			return deny(fmt.Sprintf("would exceed %s limit", t.Period))
		}
		if t.LimitAmount > 0 && float64(projected)/float64(t.LimitAmount) > warnThreshold {
			pct := projected * 100 / t.LimitAmount
			warnings = append(warnings, fmt.Sprintf("this purchase would use %d%% of the %s limit", pct, t.Period))
		}
	}

	requiresApproval := forced
	if !forced {
		requiresApproval = amount > threshold
	}

	// Trusted categories waive threshold-driven approval only; a
	// RequiresApproval restriction always stands.
	if requiresApproval && !forced &&
		settings.AutoApproveTrustedCategories &&
		categoryID != nil && settings.IsTrusted(*categoryID) {
		requiresApproval = false
	}

	return CheckResult{CanSpend: true, RequiresApproval: requiresApproval, Warnings: warnings}
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
