package limits

import (
	"time"

	"github.com/google/uuid"
)

// Period is a spending limit period type.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// Tracker is the running aggregate for one (child, period, window).
// Amounts are cents. Trackers for elapsed windows are retained for
// history and only removed by retention cleanup.
type Tracker struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ChildID       uuid.UUID `db:"child_id" json:"child_id"`
	Period        Period    `db:"period" json:"period"`
	WindowStart   time.Time `db:"window_start" json:"window_start"`
	WindowEnd     time.Time `db:"window_end" json:"window_end"`
	LimitAmount   int64     `db:"limit_amount" json:"limit_amount"`
	SpentAmount   int64     `db:"spent_amount" json:"spent_amount"`
	PendingAmount int64     `db:"pending_amount" json:"pending_amount"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Remaining returns the amount still spendable in this window.
func (t *Tracker) Remaining() int64 {
	remaining := t.LimitAmount - t.SpentAmount - t.PendingAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PercentUsed returns used fraction of the limit in [0, 1+].
func (t *Tracker) PercentUsed() float64 {
	if t.LimitAmount <= 0 {
		return 0
	}
	return float64(t.SpentAmount+t.PendingAmount) / float64(t.LimitAmount)
}

// Status is the dashboard view of a tracker.
type Status struct {
	Period          Period    `json:"period"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	LimitAmount     int64     `json:"limit_amount"`
	SpentAmount     int64     `json:"spent_amount"`
	PendingAmount   int64     `json:"pending_amount"`
	RemainingAmount int64     `json:"remaining_amount"`
	PercentUsed     float64   `json:"percent_used"`
	IncludesPending bool      `json:"includes_pending"`
}
