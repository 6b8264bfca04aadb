package limits

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Config describes one configured spending limit the trackers follow.
// The policy package owns the persisted form; callers pass the
// materialized snapshot here.
type Config struct {
	Period          Period
	LimitAmount     int64
	IncludesPending bool
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const trackerColumns = `id, child_id, period, window_start, window_end, limit_amount, spent_amount, pending_amount, created_at, updated_at`

// GetOrCreateTx returns the tracker for the window containing at,
// creating it seeded from cfg.LimitAmount when the window has not been
// touched yet. Must run inside the caller's per-child transaction.
func (r *Repository) GetOrCreateTx(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID, cfg Config, at time.Time) (*Tracker, error) {
	start, end := WindowFor(cfg.Period, at)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO spending_limit_trackers (id, child_id, period, window_start, window_end, limit_amount, spent_amount, pending_amount)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0)
		ON CONFLICT (child_id, period, window_start) DO NOTHING
	`, uuid.New(), childID, cfg.Period, start, end, cfg.LimitAmount); err != nil {
		return nil, err
	}

	var t Tracker
	err := tx.GetContext(ctx, &t, `
		SELECT `+trackerColumns+`
		FROM spending_limit_trackers
		WHERE child_id = $1 AND period = $2 AND window_start = $3
	`, childID, cfg.Period, start)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SnapshotTx materializes current-window trackers for every configured limit.
func (r *Repository) SnapshotTx(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID, cfgs []Config, at time.Time) ([]Tracker, error) {
	trackers := make([]Tracker, 0, len(cfgs))
	for _, cfg := range cfgs {
		t, err := r.GetOrCreateTx(ctx, tx, childID, cfg, at)
		if err != nil {
			return nil, err
		}
		trackers = append(trackers, *t)
	}
	return trackers, nil
}

// ReserveTx adds amount to pending on every limit that tracks pending
// requests. Runs inside one transaction, so the increments are
// all-or-nothing across periods.
func (r *Repository) ReserveTx(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID, cfgs []Config, amount int64, at time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	for _, cfg := range cfgs {
		if !cfg.IncludesPending {
			continue
		}
		t, err := r.GetOrCreateTx(ctx, tx, childID, cfg, at)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE spending_limit_trackers
			SET pending_amount = pending_amount + $1, updated_at = now()
			WHERE id = $2
		`, amount, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseTx undoes a reservation, flooring pending at zero. The floor
// guards against a sweeper/response race releasing the same hold twice.
func (r *Repository) ReleaseTx(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID, cfgs []Config, amount int64, at time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	for _, cfg := range cfgs {
		if !cfg.IncludesPending {
			continue
		}
		t, err := r.GetOrCreateTx(ctx, tx, childID, cfg, at)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE spending_limit_trackers
			SET pending_amount = GREATEST(pending_amount - $1, 0), updated_at = now()
			WHERE id = $2
		`, amount, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// CommitTx records committed spend against every configured limit's
// current window. Reservations are released separately before commit.
func (r *Repository) CommitTx(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID, cfgs []Config, amount int64, at time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	for _, cfg := range cfgs {
		t, err := r.GetOrCreateTx(ctx, tx, childID, cfg, at)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE spending_limit_trackers
			SET spent_amount = spent_amount + $1, updated_at = now()
			WHERE id = $2
		`, amount, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetCurrent returns the tracker for the window containing at without
// creating one.
func (r *Repository) GetCurrent(ctx context.Context, childID uuid.UUID, period Period, at time.Time) (*Tracker, error) {
	start, _ := WindowFor(period, at)

	var t Tracker
	err := r.db.GetContext(ctx, &t, `
		SELECT `+trackerColumns+`
		FROM spending_limit_trackers
		WHERE child_id = $1 AND period = $2 AND window_start = $3
	`, childID, period, start)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteBefore removes trackers whose windows fully elapsed before
// cutoff. Used by the sweeper's retention pass.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM spending_limit_trackers WHERE window_end < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
