package cancellation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns cancellation router. The sweep trigger sits outside the
// bearer-auth group because the scheduler authenticates with its own token.
func (h *Handler) Routes(authMiddleware, sweepGuard func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(sweepGuard).Post("/expire-old-requests", h.ExpireOldRequests)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/initiate", h.Initiate)
		r.Post("/{id}/respond", h.Respond)
		r.Get("/transaction/{transactionId}", h.GetByTransaction)
		r.Get("/{id}/history", h.History)
	})

	return r
}
