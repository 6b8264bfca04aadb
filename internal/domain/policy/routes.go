package policy

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the parent-facing policy editor router, mounted under
// /children/{childID}/policy.
func (h *Handler) Routes(authMiddleware, parentOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(parentOnly)

	r.Get("/", h.GetSettings)
	r.Put("/", h.UpdateSettings)
	r.Post("/pause", h.Pause)
	r.Post("/resume", h.Resume)

	r.Put("/rules", h.UpsertCategoryRule)
	r.Delete("/rules/{categoryID}", h.RemoveCategoryRule)

	r.Put("/limits", h.UpsertSpendingLimit)
	r.Delete("/limits/{period}", h.RemoveSpendingLimit)

	return r
}
