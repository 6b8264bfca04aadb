package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/allowly/allowly-api/internal/middleware"
	"github.com/allowly/allowly-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type creditRequest struct {
	ChildID     uuid.UUID `json:"child_id"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	ReferenceID string    `json:"reference_id"`
}

// Balance returns the caller's wallet balance (child role).
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	childID := middleware.GetUserID(r.Context())
	if childID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), childID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"balance": balance})
}

// Transactions lists the caller's ledger history.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	childID := middleware.GetUserID(r.Context())
	if childID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txns, err := h.svc.ListTransactions(r.Context(), childID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, txns)
}

// Credit tops up a child wallet (parent role).
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.ChildID == uuid.Nil {
		response.BadRequest(w, "child_id is required")
		return
	}

	txn, err := h.svc.Credit(r.Context(), req.ChildID, req.Amount, req.Description, req.ReferenceID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero")
		case errors.Is(err, ErrReferenceConflict):
			response.Conflict(w, "reference_id already used with a different amount")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, txn)
}

// Routes returns the wallet router.
func (h *Handler) Routes(authMiddleware, parentOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)
	r.With(parentOnly).Post("/credit", h.Credit)

	return r
}
