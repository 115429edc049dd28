package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns chat router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/ws", h.WebSocket)
	r.Get("/rooms/{roomId}/messages", h.GetMessages)

	return r
}
