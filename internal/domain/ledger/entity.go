package ledger

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeAllowance TransactionType = "allowance"
	TransactionTypeSpend     TransactionType = "spend"
	TransactionTypeRefund    TransactionType = "refund"
)

// Wallet holds a child's balance in cents.
type Wallet struct {
	ChildID   uuid.UUID `db:"child_id" json:"child_id"`
	Balance   int64     `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is a ledger row. Amount is signed: debits are negative.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ChildID     uuid.UUID       `db:"child_id" json:"child_id"`
	Amount      int64           `db:"amount" json:"amount"`
	Type        TransactionType `db:"type" json:"type"`
	CategoryID  *string         `db:"category_id" json:"category_id,omitempty"`
	Description string          `db:"description" json:"description"`
	ReferenceID *string         `db:"reference_id" json:"reference_id,omitempty"`
	NewBalance  int64           `db:"new_balance" json:"new_balance"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
