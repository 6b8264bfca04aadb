package approval

import (
	"time"

	"github.com/google/uuid"
)

type CheckSpendingRequest struct {
	Amount     int64   `json:"amount" validate:"required,gt=0"`
	CategoryID *string `json:"category_id,omitempty"`
}

type CreateRequestRequest struct {
	Amount      int64      `json:"amount" validate:"required,gt=0"`
	Description string     `json:"description" validate:"required,max=500"`
	CategoryID  *string    `json:"category_id,omitempty"`
	GoalItemID  *uuid.UUID `json:"goal_item_id,omitempty"`
}

type RespondRequest struct {
	Approved         bool   `json:"approved"`
	Comment          string `json:"comment" validate:"max=500"`
	IsLearningMoment bool   `json:"is_learning_moment"`
}

type DirectSpendRequest struct {
	Amount      int64   `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"required,max=500"`
	CategoryID  *string `json:"category_id,omitempty"`
	ReferenceID string  `json:"reference_id" validate:"required,max=100"`
}

// RequestResponse is the API view of a spending request.
type RequestResponse struct {
	ID               uuid.UUID  `json:"id"`
	ChildID          uuid.UUID  `json:"child_id"`
	Amount           int64      `json:"amount"`
	Description      string     `json:"description"`
	CategoryID       *string    `json:"category_id,omitempty"`
	GoalItemID       *uuid.UUID `json:"goal_item_id,omitempty"`
	Status           Status     `json:"status"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RespondedBy      *uuid.UUID `json:"responded_by,omitempty"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	ParentComment    *string    `json:"parent_comment,omitempty"`
	IsLearningMoment bool       `json:"is_learning_moment"`
	TransactionID    *uuid.UUID `json:"transaction_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func ToRequestResponse(req *Request) RequestResponse {
	resp := RequestResponse{
		ID:               req.ID,
		ChildID:          req.ChildID,
		Amount:           req.Amount,
		Description:      req.Description,
		CategoryID:       req.CategoryID,
		Status:           req.Status,
		ExpiresAt:        req.ExpiresAt,
		IsLearningMoment: req.IsLearningMoment,
		CreatedAt:        req.CreatedAt,
	}
	if req.GoalItemID.Valid {
		id := req.GoalItemID.UUID
		resp.GoalItemID = &id
	}
	if req.RespondedBy.Valid {
		id := req.RespondedBy.UUID
		resp.RespondedBy = &id
	}
	if req.RespondedAt.Valid {
		at := req.RespondedAt.Time
		resp.RespondedAt = &at
	}
	if req.ParentComment.Valid && req.ParentComment.String != "" {
		comment := req.ParentComment.String
		resp.ParentComment = &comment
	}
	if req.TransactionID.Valid {
		id := req.TransactionID.UUID
		resp.TransactionID = &id
	}
	return resp
}

func ToRequestResponses(reqs []Request) []RequestResponse {
	out := make([]RequestResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, ToRequestResponse(&reqs[i]))
	}
	return out
}
