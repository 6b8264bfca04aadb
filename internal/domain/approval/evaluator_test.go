package approval_test

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/allowly/allowly-api/internal/domain/approval"
	"github.com/allowly/allowly-api/internal/domain/limits"
	"github.com/allowly/allowly-api/internal/domain/policy"
)

func baseSettings() *policy.Settings {
	return &policy.Settings{
		ChildID:                   uuid.New(),
		IsEnabled:                 true,
		ApprovalThreshold:         1000,
		AutoApproveUnderThreshold: true,
		TrustedCategories:         []string{},
		RequestExpirationHours:    72,
	}
}

func strptr(s string) *string { return &s }

func TestEvaluateDisabledAllowsEverything(t *testing.T) {
	s := baseSettings()
	s.IsEnabled = false
	s.IsPaused = true // even a pause is ignored when governance is off

	got := approval.Evaluate(s, nil, 1_000_000, nil)
	if !got.CanSpend || got.RequiresApproval {
		t.Fatalf("disabled settings should allow freely, got %+v", got)
	}
}

func TestEvaluateThresholdBoundary(t *testing.T) {
	s := baseSettings()

	at := approval.Evaluate(s, nil, 1000, nil)
	if !at.CanSpend || at.RequiresApproval {
		t.Fatalf("amount equal to threshold should not need approval, got %+v", at)
	}

	above := approval.Evaluate(s, nil, 1001, nil)
	if !above.CanSpend || !above.RequiresApproval {
		t.Fatalf("one cent above threshold should need approval, got %+v", above)
	}
}

func TestEvaluatePausedDenies(t *testing.T) {
	s := baseSettings()
	s.IsPaused = true
	s.PauseReason = sql.NullString{String: "Grounded this week", Valid: true}

	got := approval.Evaluate(s, nil, 1, nil)
	if got.CanSpend {
		t.Fatal("paused settings should deny")
	}
	if got.BlockReason != "Grounded this week" {
		t.Fatalf("block reason = %q, want pause reason", got.BlockReason)
	}
}

func TestEvaluateMaxSinglePurchase(t *testing.T) {
	s := baseSettings()
	s.MaxSinglePurchase = sql.NullInt64{Int64: 5000, Valid: true}

	if got := approval.Evaluate(s, nil, 5000, nil); !got.CanSpend {
		t.Fatalf("amount at the ceiling should pass, got %+v", got)
	}
	if got := approval.Evaluate(s, nil, 5001, nil); got.CanSpend {
		t.Fatalf("amount above the ceiling should deny, got %+v", got)
	}
}

func TestEvaluateBlockedCategory(t *testing.T) {
	s := baseSettings()
	s.Rules = []policy.CategoryRule{{
		CategoryID:  "candy",
		Restriction: policy.RestrictionBlocked,
		Reason:      "No candy purchases",
	}}

	got := approval.Evaluate(s, nil, 100, strptr("candy"))
	if got.CanSpend {
		t.Fatal("blocked category should deny regardless of amount")
	}
	if got.BlockReason != "No candy purchases" {
		t.Fatalf("block reason = %q, want rule reason", got.BlockReason)
	}

	// Other categories are unaffected.
	if got := approval.Evaluate(s, nil, 100, strptr("books")); !got.CanSpend {
		t.Fatalf("unrelated category should pass, got %+v", got)
	}
}

func TestEvaluateCategoryForcesApproval(t *testing.T) {
	s := baseSettings()
	s.AutoApproveTrustedCategories = true
	s.TrustedCategories = []string{"games"}
	s.Rules = []policy.CategoryRule{{
		CategoryID:  "games",
		Restriction: policy.RestrictionRequiresApproval,
	}}

	// Under the global threshold and trusted, but the restriction wins.
	got := approval.Evaluate(s, nil, 100, strptr("games"))
	if !got.CanSpend || !got.RequiresApproval {
		t.Fatalf("restricted category should force approval, got %+v", got)
	}
}

func TestEvaluateTrustedCategoryWaivesThreshold(t *testing.T) {
	s := baseSettings()
	s.AutoApproveTrustedCategories = true
	s.TrustedCategories = []string{"books"}

	got := approval.Evaluate(s, nil, 5000, strptr("books"))
	if !got.CanSpend || got.RequiresApproval {
		t.Fatalf("trusted category above threshold should auto-approve, got %+v", got)
	}

	// Same amount outside the trusted list still needs approval.
	got = approval.Evaluate(s, nil, 5000, strptr("toys"))
	if !got.RequiresApproval {
		t.Fatalf("untrusted category above threshold should need approval, got %+v", got)
	}
}

func TestEvaluateCategoryThresholdOverridesGlobal(t *testing.T) {
	s := baseSettings()
	s.Rules = []policy.CategoryRule{{
		CategoryID:        "games",
		Restriction:       policy.RestrictionAllowed,
		CategoryThreshold: sql.NullInt64{Int64: 500, Valid: true},
	}}

	// 800 is under the global threshold but over the category one.
	got := approval.Evaluate(s, nil, 800, strptr("games"))
	if !got.RequiresApproval {
		t.Fatalf("amount above category threshold should need approval, got %+v", got)
	}

	if got := approval.Evaluate(s, nil, 500, strptr("games")); got.RequiresApproval {
		t.Fatalf("amount at category threshold should pass, got %+v", got)
	}
}

func TestEvaluateLimitDeniesProjectedOverrun(t *testing.T) {
	s := baseSettings()
	trackers := []limits.Tracker{{
		Period:        limits.PeriodWeekly,
		LimitAmount:   2000,
		SpentAmount:   0,
		PendingAmount: 1500,
	}}

	got := approval.Evaluate(s, trackers, 1000, nil)
	if got.CanSpend {
		t.Fatal("projected spend over the weekly limit should deny")
	}
	if !strings.Contains(got.BlockReason, "weekly") {
		t.Fatalf("block reason = %q, want mention of the weekly limit", got.BlockReason)
	}

	// Exactly at the limit is still allowed.
	got = approval.Evaluate(s, trackers, 500, nil)
	if !got.CanSpend {
		t.Fatalf("projected spend equal to the limit should pass, got %+v", got)
	}
}

func TestEvaluateLimitWarningAbove80Percent(t *testing.T) {
	s := baseSettings()
	trackers := []limits.Tracker{{
		Period:      limits.PeriodDaily,
		LimitAmount: 2000,
		SpentAmount: 1000,
	}}

	got := approval.Evaluate(s, trackers, 700, nil)
	if !got.CanSpend {
		t.Fatalf("spend within the limit should pass, got %+v", got)
	}
	if len(got.Warnings) != 1 || !strings.Contains(got.Warnings[0], "daily") {
		t.Fatalf("warnings = %v, want one daily limit warning", got.Warnings)
	}

	// At exactly 80% there is no warning.
	got = approval.Evaluate(s, trackers, 600, nil)
	if len(got.Warnings) != 0 {
		t.Fatalf("warnings at 80%% = %v, want none", got.Warnings)
	}
}

func TestEvaluateDenyBeatsForcedApproval(t *testing.T) {
	s := baseSettings()
	s.Rules = []policy.CategoryRule{{
		CategoryID:  "games",
		Restriction: policy.RestrictionRequiresApproval,
	}}
	trackers := []limits.Tracker{{
		Period:        limits.PeriodWeekly,
		LimitAmount:   1000,
		SpentAmount:   900,
		PendingAmount: 0,
	}}

	got := approval.Evaluate(s, trackers, 200, strptr("games"))
	if got.CanSpend {
		t.Fatalf("limit overrun should deny even when approval was forced, got %+v", got)
	}
}
