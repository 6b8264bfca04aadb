package notification

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type represents notification type
type Type string

const (
	TypeApprovalRequested Type = "approval_requested" // Parents: child asked to spend
	TypeRequestApproved   Type = "request_approved"   // Child: request approved
	TypeRequestDenied     Type = "request_denied"     // Child: request denied
	TypeRequestExpired    Type = "request_expired"    // Child: request timed out
	TypeLimitWarning      Type = "limit_warning"      // Child: spending limit nearly used
)

// Notification represents an in-app notification row
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      Type            `db:"type" json:"type"`
	Title     string          `db:"title" json:"title"`
	Body      sql.NullString  `db:"body" json:"body,omitempty"`
	Data      json.RawMessage `db:"data" json:"data,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	ReadAt    sql.NullTime    `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Data links a notification to governance entities
type Data struct {
	RequestID *uuid.UUID `json:"request_id,omitempty"`
	ChildID   *uuid.UUID `json:"child_id,omitempty"`
	Amount    *int64     `json:"amount,omitempty"`
	Period    *string    `json:"period,omitempty"`
}

// SetData encodes data to JSON
func (n *Notification) SetData(data *Data) {
	if data != nil {
		n.Data, _ = json.Marshal(data)
	}
}
