package approval

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SpendingRoutes returns the child-facing spending router, mounted
// under /spending.
func (h *Handler) SpendingRoutes(authMiddleware, childOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(childOnly)

	r.Post("/check", h.Check)
	r.Post("/spend", h.Spend)
	r.Get("/limits", h.MyLimits)

	return r
}

// RequestRoutes returns the request lifecycle router, mounted under
// /requests. Parents respond, children create and cancel.
func (h *Handler) RequestRoutes(authMiddleware, parentOnly, childOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(childOnly)
		r.Post("/", h.CreateRequest)
		r.Get("/my", h.MyRequests)
		r.Post("/{id}/cancel", h.Cancel)
	})

	r.Group(func(r chi.Router) {
		r.Use(parentOnly)
		r.Get("/pending", h.PendingRequests)
		r.Post("/{id}/respond", h.Respond)
	})

	r.Get("/{id}", h.GetRequest)

	return r
}

// LimitRoutes returns the parent-facing limit dashboard router,
// mounted under /children/{childID}/limits.
func (h *Handler) LimitRoutes(authMiddleware, parentOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(parentOnly)

	r.Get("/", h.ChildLimits)

	return r
}
