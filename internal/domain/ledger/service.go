package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetBalance(ctx context.Context, childID uuid.UUID) (int64, error) {
	return s.repo.GetBalance(ctx, childID)
}

func (s *Service) ListTransactions(ctx context.Context, childID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactions(ctx, childID, limit, offset)
}

// Credit tops up the child's wallet (allowance payment or refund).
func (s *Service) Credit(ctx context.Context, childID uuid.UUID, amount int64, description, referenceID string) (*Transaction, error) {
	txn, err := s.repo.Credit(ctx, childID, amount, TransactionTypeAllowance, description, referenceID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("child_id", childID.String()).Int64("amount", amount).Str("reference_id", referenceID).Msg("wallet credit applied")
	return txn, nil
}

// DebitTx debits the wallet inside an external transaction so the
// debit is atomic with the governance state change that caused it.
// Idempotent by reference id.
func (s *Service) DebitTx(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID, amount int64, description string, categoryID *string, referenceID string) (*Transaction, error) {
	return s.repo.DebitTx(ctx, tx, childID, amount, description, categoryID, referenceID)
}
