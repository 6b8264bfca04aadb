package policy

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allowly/allowly-api/internal/domain/limits"
)

// Restriction controls how a category is treated during evaluation.
type Restriction string

const (
	RestrictionAllowed          Restriction = "allowed"
	RestrictionRequiresApproval Restriction = "requires_approval"
	RestrictionBlocked          Restriction = "blocked"
)

// Defaults applied when settings are created lazily on first access.
const (
	DefaultApprovalThreshold      int64 = 1000 // cents
	DefaultRequestExpirationHours       = 72
)

// Settings is the per-child approval policy. Rules and Limits are
// loaded wholesale with the row; the evaluator always receives a fully
// materialized snapshot.
type Settings struct {
	ChildID                      uuid.UUID      `db:"child_id" json:"child_id"`
	IsEnabled                    bool           `db:"is_enabled" json:"is_enabled"`
	IsPaused                     bool           `db:"is_paused" json:"is_paused"`
	PauseReason                  sql.NullString `db:"pause_reason" json:"pause_reason"`
	ApprovalThreshold            int64          `db:"approval_threshold" json:"approval_threshold"`
	MaxSinglePurchase            sql.NullInt64  `db:"max_single_purchase" json:"max_single_purchase"`
	AutoApproveUnderThreshold    bool           `db:"auto_approve_under_threshold" json:"auto_approve_under_threshold"`
	AutoApproveTrustedCategories bool           `db:"auto_approve_trusted_categories" json:"auto_approve_trusted_categories"`
	TrustedCategories            pq.StringArray `db:"trusted_categories" json:"trusted_categories"`
	RequestExpirationHours       int            `db:"request_expiration_hours" json:"request_expiration_hours"`
	CreatedAt                    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt                    time.Time      `db:"updated_at" json:"updated_at"`

	Rules  []CategoryRule  `db:"-" json:"rules"`
	Limits []SpendingLimit `db:"-" json:"limits"`
}

// CategoryRule overrides the global policy for one category.
type CategoryRule struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	ChildID           uuid.UUID     `db:"child_id" json:"child_id"`
	CategoryID        string        `db:"category_id" json:"category_id"`
	Restriction       Restriction   `db:"restriction" json:"restriction"`
	CategoryThreshold sql.NullInt64 `db:"category_threshold" json:"category_threshold"`
	Reason            string        `db:"reason" json:"reason"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// SpendingLimit caps spend over a period. At most one limit per period
// type per child.
type SpendingLimit struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	ChildID         uuid.UUID     `db:"child_id" json:"child_id"`
	Period          limits.Period `db:"period" json:"period"`
	LimitAmount     int64         `db:"limit_amount" json:"limit_amount"`
	IncludesPending bool          `db:"includes_pending" json:"includes_pending"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// RuleFor returns the rule for categoryID, or nil.
func (s *Settings) RuleFor(categoryID string) *CategoryRule {
	for i := range s.Rules {
		if s.Rules[i].CategoryID == categoryID {
			return &s.Rules[i]
		}
	}
	return nil
}

// IsTrusted reports whether categoryID is on the trusted list.
func (s *Settings) IsTrusted(categoryID string) bool {
	for _, c := range s.TrustedCategories {
		if c == categoryID {
			return true
		}
	}
	return false
}

// LimitConfigs converts the configured limits to tracker configs.
func (s *Settings) LimitConfigs() []limits.Config {
	cfgs := make([]limits.Config, 0, len(s.Limits))
	for _, l := range s.Limits {
		cfgs = append(cfgs, limits.Config{
			Period:          l.Period,
			LimitAmount:     l.LimitAmount,
			IncludesPending: l.IncludesPending,
		})
	}
	return cfgs
}
