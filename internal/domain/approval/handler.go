package approval

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/allowly/allowly-api/internal/domain/ledger"
	"github.com/allowly/allowly-api/internal/middleware"
	"github.com/allowly/allowly-api/internal/pkg/response"
	"github.com/allowly/allowly-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Check evaluates a proposed spend for the calling child.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	childID := middleware.GetUserID(r.Context())

	var req CheckSpendingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	result, err := h.svc.CheckSpending(r.Context(), childID, req.Amount, req.CategoryID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, result)
}

// Spend executes an immediate purchase for the calling child.
func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	childID := middleware.GetUserID(r.Context())

	var req DirectSpendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	txn, err := h.svc.DirectSpend(r.Context(), childID, req.Amount, req.Description, req.CategoryID, req.ReferenceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, txn)
}

// CreateRequest records a new pending approval request.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	childID := middleware.GetUserID(r.Context())
	familyID := middleware.GetFamilyID(r.Context())

	var req CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	in := CreateInput{
		ChildID:     childID,
		FamilyID:    familyID,
		Amount:      req.Amount,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	}
	if req.GoalItemID != nil {
		in.GoalItemID = uuid.NullUUID{UUID: *req.GoalItemID, Valid: true}
	}

	created, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, ToRequestResponse(created))
}

// MyRequests returns the calling child's request history.
func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	childID := middleware.GetUserID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	reqs, err := h.svc.ListByChild(r.Context(), childID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, ToRequestResponses(reqs))
}

// PendingRequests returns all open requests in the caller's family.
func (h *Handler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	familyID := middleware.GetFamilyID(r.Context())

	reqs, err := h.svc.ListPendingByFamily(r.Context(), familyID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, ToRequestResponses(reqs))
}

// GetRequest returns one request within the caller's family.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	familyID := middleware.GetFamilyID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid request id")
		return
	}

	req, err := h.svc.GetByID(r.Context(), id, familyID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, ToRequestResponse(req))
}

// Respond records a parent's approval or denial.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	parentID := middleware.GetUserID(r.Context())
	familyID := middleware.GetFamilyID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid request id")
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	resolved, err := h.svc.Respond(r.Context(), id, parentID, familyID, req.Approved, req.Comment, req.IsLearningMoment)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, ToRequestResponse(resolved))
}

// Cancel withdraws the calling child's own pending request.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	childID := middleware.GetUserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid request id")
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), id, childID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, ToRequestResponse(cancelled))
}

// MyLimits returns the calling child's current limit usage.
func (h *Handler) MyLimits(w http.ResponseWriter, r *http.Request) {
	childID := middleware.GetUserID(r.Context())

	statuses, err := h.svc.GetLimitStatuses(r.Context(), childID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, statuses)
}

// ChildLimits returns limit usage for a child, for parents.
func (h *Handler) ChildLimits(w http.ResponseWriter, r *http.Request) {
	childID, err := uuid.Parse(chi.URLParam(r, "childID"))
	if err != nil {
		response.BadRequest(w, "invalid child id")
		return
	}

	statuses, err := h.svc.GetLimitStatuses(r.Context(), childID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, statuses)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var blocked *BlockedError
	switch {
	case errors.As(err, &blocked):
		response.Forbidden(w, blocked.Reason)
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrDescriptionRequired):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrRequestNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotPending),
		errors.Is(err, ErrApprovalNotRequired),
		errors.Is(err, ErrApprovalRequired),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrDuplicateReference):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrNotRequestOwner):
		response.Forbidden(w, err.Error())
	case IsTransient(err):
		response.ServiceUnavailable(w, "temporarily unavailable, please retry")
	default:
		response.InternalError(w)
	}
}
