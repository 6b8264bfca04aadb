package policy

import (
	"time"

	"github.com/google/uuid"
)

// UpdateSettingsRequest is the parent-facing settings payload.
type UpdateSettingsRequest struct {
	IsEnabled                    bool     `json:"is_enabled"`
	ApprovalThreshold            int64    `json:"approval_threshold" validate:"gte=0"`
	MaxSinglePurchase            *int64   `json:"max_single_purchase,omitempty" validate:"omitempty,gt=0"`
	AutoApproveUnderThreshold    bool     `json:"auto_approve_under_threshold"`
	AutoApproveTrustedCategories bool     `json:"auto_approve_trusted_categories"`
	TrustedCategories            []string `json:"trusted_categories"`
	RequestExpirationHours       int      `json:"request_expiration_hours" validate:"gt=0"`
}

// PauseRequest carries the pause reason.
type PauseRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// CategoryRuleRequest is the rule upsert payload.
type CategoryRuleRequest struct {
	CategoryID        string `json:"category_id" validate:"required,min=1,max=100"`
	Restriction       string `json:"restriction" validate:"required,restriction"`
	CategoryThreshold *int64 `json:"category_threshold,omitempty" validate:"omitempty,gte=0"`
	Reason            string `json:"reason" validate:"max=500"`
}

// SpendingLimitRequest is the limit upsert payload.
type SpendingLimitRequest struct {
	Period          string `json:"period" validate:"required,period"`
	LimitAmount     int64  `json:"limit_amount" validate:"gt=0"`
	IncludesPending bool   `json:"includes_pending"`
}

// SettingsResponse is the API view of a settings snapshot.
type SettingsResponse struct {
	ChildID                      uuid.UUID               `json:"child_id"`
	IsEnabled                    bool                    `json:"is_enabled"`
	IsPaused                     bool                    `json:"is_paused"`
	PauseReason                  *string                 `json:"pause_reason,omitempty"`
	ApprovalThreshold            int64                   `json:"approval_threshold"`
	MaxSinglePurchase            *int64                  `json:"max_single_purchase,omitempty"`
	AutoApproveUnderThreshold    bool                    `json:"auto_approve_under_threshold"`
	AutoApproveTrustedCategories bool                    `json:"auto_approve_trusted_categories"`
	TrustedCategories            []string                `json:"trusted_categories"`
	RequestExpirationHours       int                     `json:"request_expiration_hours"`
	Rules                        []CategoryRuleResponse  `json:"rules"`
	Limits                       []SpendingLimitResponse `json:"limits"`
	UpdatedAt                    time.Time               `json:"updated_at"`
}

// CategoryRuleResponse is the API view of a category rule.
type CategoryRuleResponse struct {
	CategoryID        string  `json:"category_id"`
	Restriction       string  `json:"restriction"`
	CategoryThreshold *int64  `json:"category_threshold,omitempty"`
	Reason            string  `json:"reason,omitempty"`
}

// SpendingLimitResponse is the API view of a spending limit.
type SpendingLimitResponse struct {
	Period          string `json:"period"`
	LimitAmount     int64  `json:"limit_amount"`
	IncludesPending bool   `json:"includes_pending"`
}

// ToSettingsResponse converts a snapshot to its API view.
func ToSettingsResponse(s *Settings) SettingsResponse {
	resp := SettingsResponse{
		ChildID:                      s.ChildID,
		IsEnabled:                    s.IsEnabled,
		IsPaused:                     s.IsPaused,
		ApprovalThreshold:            s.ApprovalThreshold,
		AutoApproveUnderThreshold:    s.AutoApproveUnderThreshold,
		AutoApproveTrustedCategories: s.AutoApproveTrustedCategories,
		TrustedCategories:            s.TrustedCategories,
		RequestExpirationHours:       s.RequestExpirationHours,
		Rules:                        make([]CategoryRuleResponse, 0, len(s.Rules)),
		Limits:                       make([]SpendingLimitResponse, 0, len(s.Limits)),
		UpdatedAt:                    s.UpdatedAt,
	}
	if resp.TrustedCategories == nil {
		resp.TrustedCategories = []string{}
	}
	if s.PauseReason.Valid {
		resp.PauseReason = &s.PauseReason.String
	}
	if s.MaxSinglePurchase.Valid {
		v := s.MaxSinglePurchase.Int64
		resp.MaxSinglePurchase = &v
	}
	for _, rule := range s.Rules {
		resp.Rules = append(resp.Rules, ToCategoryRuleResponse(&rule))
	}
	for _, limit := range s.Limits {
		resp.Limits = append(resp.Limits, SpendingLimitResponse{
			Period:          string(limit.Period),
			LimitAmount:     limit.LimitAmount,
			IncludesPending: limit.IncludesPending,
		})
	}
	return resp
}

// ToCategoryRuleResponse converts a rule to its API view.
func ToCategoryRuleResponse(rule *CategoryRule) CategoryRuleResponse {
	resp := CategoryRuleResponse{
		CategoryID:  rule.CategoryID,
		Restriction: string(rule.Restriction),
		Reason:      rule.Reason,
	}
	if rule.CategoryThreshold.Valid {
		v := rule.CategoryThreshold.Int64
		resp.CategoryThreshold = &v
	}
	return resp
}
