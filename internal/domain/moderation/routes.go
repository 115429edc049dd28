package moderation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns report routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.Post("/submit", h.Submit)
	r.Post("/appeal/{reportId}", h.Appeal)
	r.Get("/my-reports", h.ListMyReports)
	r.Get("/against-me", h.ListAgainstMe)
	r.Get("/trust-score", h.GetTrustScore)

	return r
}

// AdminRoutes returns admin-only report routes
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(adminMiddleware)

	r.Get("/appeals", h.ListPendingAppeals)
	r.Get("/{reportId}", h.GetReport)
	r.Post("/{reportId}/appeal/resolve", h.ResolveAppeal)

	return r
}
