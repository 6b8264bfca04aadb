package approval

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the spending request state. Pending is the only
// non-terminal state; every transition out of it is final.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusDenied, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Request is a child's pending purchase waiting on a parent decision.
// Mutated only through the lifecycle transitions.
type Request struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	ChildID     uuid.UUID     `db:"child_id" json:"child_id"`
	FamilyID    uuid.UUID     `db:"family_id" json:"family_id"`
	Amount      int64         `db:"amount" json:"amount"`
	Description string        `db:"description" json:"description"`
	CategoryID  *string       `db:"category_id" json:"category_id,omitempty"`
	GoalItemID  uuid.NullUUID `db:"goal_item_id" json:"-"`
	Status      Status        `db:"status" json:"status"`
	ExpiresAt   time.Time     `db:"expires_at" json:"expires_at"`

	// Response fields, set only on Approved/Denied.
	RespondedBy      uuid.NullUUID  `db:"responded_by" json:"-"`
	RespondedAt      sql.NullTime   `db:"responded_at" json:"-"`
	ParentComment    sql.NullString `db:"parent_comment" json:"-"`
	IsLearningMoment bool           `db:"is_learning_moment" json:"is_learning_moment"`

	// Ledger transaction created on approval.
	TransactionID uuid.NullUUID `db:"transaction_id" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
