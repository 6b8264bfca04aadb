package approval

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const requestColumns = `id, child_id, family_id, amount, description, category_id, goal_item_id, status, expires_at,
	responded_by, responded_at, parent_comment, is_learning_moment, transaction_id, created_at, updated_at`

// CreateTx inserts a new pending request inside the caller's transaction.
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, req *Request) error {
	return tx.GetContext(ctx, req, `
		INSERT INTO spending_requests (id, child_id, family_id, amount, description, category_id, goal_item_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+requestColumns+`
	`, req.ID, req.ChildID, req.FamilyID, req.Amount, req.Description, req.CategoryID, req.GoalItemID, req.Status, req.ExpiresAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	var req Request
	err := r.db.GetContext(ctx, &req, `
		SELECT `+requestColumns+` FROM spending_requests WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetForUpdateTx locks the request row for the duration of the
// transaction. Every transition re-reads through this so concurrent
// responders observe the status set by whoever won the row lock.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Request, error) {
	var req Request
	err := tx.GetContext(ctx, &req, `
		SELECT `+requestColumns+` FROM spending_requests WHERE id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// MarkRespondedTx finalizes the request as approved or denied. The
// status guard in the WHERE clause backs up the row lock; zero rows
// affected means someone else transitioned first.
func (r *Repository) MarkRespondedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status, respondedBy uuid.UUID, at time.Time, comment string, learningMoment bool, transactionID uuid.NullUUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE spending_requests
		SET status = $1, responded_by = $2, responded_at = $3, parent_comment = $4,
		    is_learning_moment = $5, transaction_id = $6, updated_at = $3
		WHERE id = $7 AND status = 'pending'
	`, status, respondedBy, at, comment, learningMoment, transactionID, id)
	if err != nil {
		return err
	}
	return requireTransition(res)
}

func (r *Repository) MarkCancelledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE spending_requests
		SET status = 'cancelled', updated_at = $1
		WHERE id = $2 AND status = 'pending'
	`, at, id)
	if err != nil {
		return err
	}
	return requireTransition(res)
}

func (r *Repository) MarkExpiredTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE spending_requests
		SET status = 'expired', updated_at = $1
		WHERE id = $2 AND status = 'pending'
	`, at, id)
	if err != nil {
		return err
	}
	return requireTransition(res)
}

func requireTransition(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotPending
	}
	return nil
}

// ListByChild returns a child's requests, newest first.
func (r *Repository) ListByChild(ctx context.Context, childID uuid.UUID, limit, offset int) ([]Request, error) {
	reqs := []Request{}
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT `+requestColumns+` FROM spending_requests
		WHERE child_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, childID, limit, offset)
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// ListPendingByFamily returns every open request in a family, oldest
// first so parents see the longest-waiting ones on top.
func (r *Repository) ListPendingByFamily(ctx context.Context, familyID uuid.UUID) ([]Request, error) {
	reqs := []Request{}
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT `+requestColumns+` FROM spending_requests
		WHERE family_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
	`, familyID)
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// ListExpiredPending returns ids of pending requests past their
// deadline. The sweeper drives each through Expire individually so one
// bad row cannot stall the batch.
func (r *Repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM spending_requests
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
