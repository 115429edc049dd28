package notification

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/middleware"
	"github.com/bookloop/bookloop-api/internal/pkg/errorhandler"
	"github.com/bookloop/bookloop-api/internal/pkg/response"
)

// Handler handles notification HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates notification handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /notifications
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := response.Pagination(r)

	notifications, err := h.service.List(r.Context(), userID, limit, offset)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	items := make([]*NotificationResponse, len(notifications))
	for i, n := range notifications {
		items[i] = NotificationResponseFromEntity(n)
	}

	response.OK(w, items)
}

// GetUnreadCount handles GET /notifications/unread-count
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	count, err := h.service.GetUnreadCount(r.Context(), userID)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	response.OK(w, UnreadCountResponse{UnreadCount: count})
}

// MarkAsRead handles POST /notifications/{id}/read
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid notification ID")
		return
	}

	if err := h.service.MarkAsRead(r.Context(), id, middleware.GetUserID(r.Context())); err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, map[string]string{"status": "ok"})
}

// MarkAllAsRead handles POST /notifications/read-all
func (h *Handler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.service.MarkAllAsRead(r.Context(), userID); err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, map[string]string{"status": "ok"})
}

// Routes returns notification router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.List)
	r.Get("/unread-count", h.GetUnreadCount)
	r.Post("/{id}/read", h.MarkAsRead)
	r.Post("/read-all", h.MarkAllAsRead)

	return r
}
