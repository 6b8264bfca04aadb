package ledger

import (
	"context"
	"database/sql"
	"errors"

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

const transactionColumns = `id, child_id, amount, type, category_id, description, reference_id, new_balance, created_at`

func (r *Repository) EnsureWallet(ctx context.Context, childID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO child_wallets (child_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (child_id) DO NOTHING
	`, childID)
	return err
}

func (r *Repository) GetBalance(ctx context.Context, childID uuid.UUID) (int64, error) {
	if err := r.EnsureWallet(ctx, childID); err != nil {
		return 0, err
	}

	var balance int64
	err := r.db.GetContext(ctx, &balance, `SELECT balance FROM child_wallets WHERE child_id = $1`, childID)
	return balance, err
}

func (r *Repository) ListTransactions(ctx context.Context, childID uuid.UUID, limit, offset int) ([]Transaction, error) {
	txns := []Transaction{}
	err := r.db.SelectContext(ctx, &txns, `
		SELECT `+transactionColumns+`
		FROM allowance_transactions
		WHERE child_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, childID, limit, offset)
	return txns, err
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO child_wallets (child_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (child_id) DO NOTHING
	`, childID); err != nil {
		return 0, err
	}

	var balance int64
	err := tx.GetContext(ctx, &balance, `SELECT balance FROM child_wallets WHERE child_id = $1 FOR UPDATE`, childID)
	return balance, err
}

func (r *Repository) getTransactionByRef(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID, txType TransactionType, referenceID string) (*Transaction, error) {
	if referenceID == "" {
		return nil, nil
	}

	var txn Transaction
	err := tx.GetContext(ctx, &txn, `
		SELECT `+transactionColumns+`
		FROM allowance_transactions
		WHERE child_id = $1 AND type = $2 AND reference_id = $3
		LIMIT 1
	`, childID, string(txType), referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// applyTx moves the balance by amount (signed) inside tx, idempotent by
// reference id. Returns the resulting ledger row.
func (r *Repository) applyTx(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID, amount int64, txType TransactionType, description string, categoryID *string, referenceID string) (*Transaction, error) {
	balance, err := r.lockWallet(ctx, tx, childID)
	if err != nil {
		return nil, err
	}

	existing, err := r.getTransactionByRef(ctx, tx, childID, txType, referenceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Amount != amount {
			return nil, ErrReferenceConflict
		}
		return existing, nil
	}

	nextBalance := balance + amount
	if nextBalance < 0 {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE child_wallets SET balance = $1, updated_at = now() WHERE child_id = $2
	`, nextBalance, childID); err != nil {
		return nil, err
	}

	var ref interface{}
	if referenceID != "" {
		ref = referenceID
	}

	var txn Transaction
	err = tx.GetContext(ctx, &txn, `
		INSERT INTO allowance_transactions (id, child_id, amount, type, category_id, description, reference_id, new_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+transactionColumns+`
	`, uuid.New(), childID, amount, string(txType), categoryID, description, ref, nextBalance)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}
	return &txn, nil
}

// DebitTx debits the child's wallet inside the caller's transaction.
// The approval flow uses this so the debit commits or rolls back with
// the request transition.
func (r *Repository) DebitTx(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID, amount int64, description string, categoryID *string, referenceID string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return r.applyTx(ctx, tx, childID, -amount, TransactionTypeSpend, description, categoryID, referenceID)
}

// Credit adds funds (allowance, refunds) in its own transaction.
func (r *Repository) Credit(ctx context.Context, childID uuid.UUID, amount int64, txType TransactionType, description, referenceID string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txn, err := r.applyTx(ctx, tx, childID, amount, txType, description, nil, referenceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return txn, nil
}
