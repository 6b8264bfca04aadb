package policy

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/allowly/allowly-api/internal/domain/limits"
	"github.com/allowly/allowly-api/internal/pkg/response"
	"github.com/allowly/allowly-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func childIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "childID"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// GetSettings returns the child's policy snapshot, creating defaults on
// first access.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid child id")
		return
	}

	settings, err := h.svc.GetSettings(r.Context(), childID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, ToSettingsResponse(settings))
}

// UpdateSettings replaces the scalar policy fields.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid child id")
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	settings, err := h.svc.UpdateSettings(r.Context(), childID, UpdateSettingsInput{
		IsEnabled:                    req.IsEnabled,
		ApprovalThreshold:            req.ApprovalThreshold,
		MaxSinglePurchase:            req.MaxSinglePurchase,
		AutoApproveUnderThreshold:    req.AutoApproveUnderThreshold,
		AutoApproveTrustedCategories: req.AutoApproveTrustedCategories,
		TrustedCategories:            req.TrustedCategories,
		RequestExpirationHours:       req.RequestExpirationHours,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, ToSettingsResponse(settings))
}

// Pause stops all spending for the child.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid child id")
		return
	}

	var req PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	if err := h.svc.SetPaused(r.Context(), childID, req.Reason); err != nil {
		h.writeError(w, err)
		return
	}

	response.NoContent(w)
}

// Resume lifts a pause.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid child id")
		return
	}

	if err := h.svc.Resume(r.Context(), childID); err != nil {
		h.writeError(w, err)
		return
	}

	response.NoContent(w)
}

// UpsertCategoryRule creates or replaces a category rule.
func (h *Handler) UpsertCategoryRule(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid child id")
		return
	}

	var req CategoryRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	rule, err := h.svc.UpsertCategoryRule(r.Context(), childID, CategoryRuleInput{
		CategoryID:        req.CategoryID,
		Restriction:       Restriction(req.Restriction),
		CategoryThreshold: req.CategoryThreshold,
		Reason:            req.Reason,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, ToCategoryRuleResponse(rule))
}

// RemoveCategoryRule deletes a category rule.
func (h *Handler) RemoveCategoryRule(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid child id")
		return
	}

	categoryID := chi.URLParam(r, "categoryID")
	if err := h.svc.RemoveCategoryRule(r.Context(), childID, categoryID); err != nil {
		h.writeError(w, err)
		return
	}

	response.NoContent(w)
}

// UpsertSpendingLimit creates or replaces a period limit.
func (h *Handler) UpsertSpendingLimit(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid child id")
		return
	}

	var req SpendingLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	limit, err := h.svc.UpsertSpendingLimit(r.Context(), childID, SpendingLimitInput{
		Period:          limits.Period(req.Period),
		LimitAmount:     req.LimitAmount,
		IncludesPending: req.IncludesPending,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, SpendingLimitResponse{
		Period:          string(limit.Period),
		LimitAmount:     limit.LimitAmount,
		IncludesPending: limit.IncludesPending,
	})
}

// RemoveSpendingLimit deletes a period limit.
func (h *Handler) RemoveSpendingLimit(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDParam(r)
	if !ok {
		response.BadRequest(w, "invalid child id")
		return
	}

	period := limits.Period(chi.URLParam(r, "period"))
	if err := h.svc.RemoveSpendingLimit(r.Context(), childID, period); err != nil {
		h.writeError(w, err)
		return
	}

	response.NoContent(w)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRuleNotFound), errors.Is(err, ErrLimitNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNegativeThreshold),
		errors.Is(err, ErrInvalidLimitAmount),
		errors.Is(err, ErrInvalidMaxPurchase),
		errors.Is(err, ErrInvalidExpiration),
		errors.Is(err, ErrPauseReasonRequired),
		errors.Is(err, ErrInvalidPeriod),
		errors.Is(err, ErrInvalidRestriction):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w)
	}
}
