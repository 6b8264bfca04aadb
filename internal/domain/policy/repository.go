package policy

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const settingsColumns = `child_id, is_enabled, is_paused, pause_reason, approval_threshold, max_single_purchase,
	auto_approve_under_threshold, auto_approve_trusted_categories, trusted_categories, request_expiration_hours,
	created_at, updated_at`

// ensureSettings inserts the default settings row if the child has none.
func (r *Repository) ensureSettings(ctx context.Context, q sqlx.ExtContext, childID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO approval_settings (child_id, is_enabled, approval_threshold, request_expiration_hours, trusted_categories)
		VALUES ($1, true, $2, $3, '{}')
		ON CONFLICT (child_id) DO NOTHING
	`, childID, DefaultApprovalThreshold, DefaultRequestExpirationHours)
	return err
}

// GetSettings returns the child's settings with rules and limits
// materialized, creating defaults on first access.
func (r *Repository) GetSettings(ctx context.Context, childID uuid.UUID) (*Settings, error) {
	if err := r.ensureSettings(ctx, r.db, childID); err != nil {
		return nil, err
	}

	var s Settings
	if err := r.db.GetContext(ctx, &s, `
		SELECT `+settingsColumns+` FROM approval_settings WHERE child_id = $1
	`, childID); err != nil {
		return nil, err
	}

	if err := r.loadCollections(ctx, r.db, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LockForChildTx locks the child's settings row FOR UPDATE inside tx
// and returns the materialized snapshot. This is the per-child critical
// section every governance mutation runs under: a single writer per
// child at a time.
func (r *Repository) LockForChildTx(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID) (*Settings, error) {
	if err := r.ensureSettings(ctx, tx, childID); err != nil {
		return nil, err
	}

	var s Settings
	if err := tx.GetContext(ctx, &s, `
		SELECT `+settingsColumns+` FROM approval_settings WHERE child_id = $1 FOR UPDATE
	`, childID); err != nil {
		return nil, err
	}

	if err := r.loadCollections(ctx, tx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) loadCollections(ctx context.Context, q sqlx.QueryerContext, s *Settings) error {
	if err := sqlx.SelectContext(ctx, q, &s.Rules, `
		SELECT id, child_id, category_id, restriction, category_threshold, reason, created_at, updated_at
		FROM category_rules WHERE child_id = $1 ORDER BY category_id
	`, s.ChildID); err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, q, &s.Limits, `
		SELECT id, child_id, period, limit_amount, includes_pending, created_at, updated_at
		FROM spending_limits WHERE child_id = $1 ORDER BY period
	`, s.ChildID)
}

// UpdateSettings writes the scalar policy fields.
func (r *Repository) UpdateSettings(ctx context.Context, s *Settings) error {
	if err := r.ensureSettings(ctx, r.db, s.ChildID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE approval_settings
		SET is_enabled = $1,
			approval_threshold = $2,
			max_single_purchase = $3,
			auto_approve_under_threshold = $4,
			auto_approve_trusted_categories = $5,
			trusted_categories = $6,
			request_expiration_hours = $7,
			updated_at = now()
		WHERE child_id = $8
	`, s.IsEnabled, s.ApprovalThreshold, s.MaxSinglePurchase, s.AutoApproveUnderThreshold,
		s.AutoApproveTrustedCategories, pq.Array([]string(s.TrustedCategories)), s.RequestExpirationHours, s.ChildID)
	return err
}

// SetPaused pauses all child spending with a user-facing reason.
func (r *Repository) SetPaused(ctx context.Context, childID uuid.UUID, reason string) error {
	if err := r.ensureSettings(ctx, r.db, childID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE approval_settings
		SET is_paused = true, pause_reason = $1, updated_at = now()
		WHERE child_id = $2
	`, reason, childID)
	return err
}

// Resume clears the paused flag.
func (r *Repository) Resume(ctx context.Context, childID uuid.UUID) error {
	if err := r.ensureSettings(ctx, r.db, childID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE approval_settings
		SET is_paused = false, pause_reason = NULL, updated_at = now()
		WHERE child_id = $1
	`, childID)
	return err
}

// UpsertCategoryRule creates or replaces the rule for the category.
func (r *Repository) UpsertCategoryRule(ctx context.Context, rule *CategoryRule) error {
	if err := r.ensureSettings(ctx, r.db, rule.ChildID); err != nil {
		return err
	}
	return r.db.GetContext(ctx, rule, `
		INSERT INTO category_rules (id, child_id, category_id, restriction, category_threshold, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (child_id, category_id) DO UPDATE
		SET restriction = EXCLUDED.restriction,
			category_threshold = EXCLUDED.category_threshold,
			reason = EXCLUDED.reason,
			updated_at = now()
		RETURNING id, child_id, category_id, restriction, category_threshold, reason, created_at, updated_at
	`, uuid.New(), rule.ChildID, rule.CategoryID, rule.Restriction, rule.CategoryThreshold, rule.Reason)
}

// RemoveCategoryRule deletes the rule for the category.
func (r *Repository) RemoveCategoryRule(ctx context.Context, childID uuid.UUID, categoryID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM category_rules WHERE child_id = $1 AND category_id = $2
	`, childID, categoryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// UpsertSpendingLimit creates or replaces the limit for the period.
func (r *Repository) UpsertSpendingLimit(ctx context.Context, limit *SpendingLimit) error {
	if err := r.ensureSettings(ctx, r.db, limit.ChildID); err != nil {
		return err
	}
	return r.db.GetContext(ctx, limit, `
		INSERT INTO spending_limits (id, child_id, period, limit_amount, includes_pending)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (child_id, period) DO UPDATE
		SET limit_amount = EXCLUDED.limit_amount,
			includes_pending = EXCLUDED.includes_pending,
			updated_at = now()
		RETURNING id, child_id, period, limit_amount, includes_pending, created_at, updated_at
	`, uuid.New(), limit.ChildID, limit.Period, limit.LimitAmount, limit.IncludesPending)
}

// RemoveSpendingLimit deletes the limit for the period.
func (r *Repository) RemoveSpendingLimit(ctx context.Context, childID uuid.UUID, period string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM spending_limits WHERE child_id = $1 AND period = $2
	`, childID, period)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLimitNotFound
	}
	return nil
}

// nullInt64 builds a sql.NullInt64 from an optional cents value.
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
