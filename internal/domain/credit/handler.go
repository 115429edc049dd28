package credit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookloop/bookloop-api/internal/middleware"
	"github.com/bookloop/bookloop-api/internal/pkg/errorhandler"
	"github.com/bookloop/bookloop-api/internal/pkg/response"
)

// Handler exposes the caller's own ledger.
type Handler struct {
	ledger *Ledger
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// Routes returns credit routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/balance", h.GetBalance)
	r.Get("/transactions", h.ListTransactions)

	return r
}

// GetBalance handles GET /credits/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	balance, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, map[string]int{"balance": balance})
}

// ListTransactions handles GET /credits/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := response.Pagination(r)

	items, total, err := h.ledger.ListTransactions(r.Context(), userID, Pagination{Limit: limit, Offset: offset})
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.WithMeta(w, items, response.Meta{Total: total, Limit: limit, Offset: offset})
}
