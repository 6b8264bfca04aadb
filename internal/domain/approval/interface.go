package approval

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/allowly/allowly-api/internal/domain/ledger"
)

// Ledger moves money. DebitTx runs inside the governance transaction so
// the debit commits or rolls back with the request transition
// (insufficient funds at approval time must leave the request Pending).
type Ledger interface {
	DebitTx(ctx context.Context, tx *sqlx.Tx, childID uuid.UUID, amount int64, description string, categoryID *string, referenceID string) (*ledger.Transaction, error)
}

// Notifier delivers outcome notifications. Fire-and-forget: the
// implementations log failures and never return them.
type Notifier interface {
	NotifyApprovalRequested(ctx context.Context, familyID, childID, requestID uuid.UUID, amount int64)
	NotifyRequestResolved(ctx context.Context, childID, requestID uuid.UUID, approved bool, comment string)
	NotifyRequestExpired(ctx context.Context, childID, requestID uuid.UUID)
	NotifyLimitWarning(ctx context.Context, childID uuid.UUID, message string)
}
