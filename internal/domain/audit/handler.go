package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/pkg/errorhandler"
	"github.com/bookloop/bookloop-api/internal/pkg/response"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// AdminRoutes returns admin-only audit routes
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)

	r.Get("/", h.List)

	return r
}

// List handles GET /admin/audit
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.Pagination(r)
	q := r.URL.Query()

	filter := Filter{
		EntityType: q.Get("entity_type"),
		Action:     q.Get("action"),
		Limit:      limit,
		Offset:     offset,
	}
	if raw := q.Get("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "Invalid entity_id")
			return
		}
		filter.EntityID = &id
	}

	entries, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.WithMeta(w, entries, response.Meta{Total: total, Limit: limit, Offset: offset})
}
