package cancellation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/middleware"
	"github.com/bookloop/bookloop-api/internal/pkg/errorhandler"
	"github.com/bookloop/bookloop-api/internal/pkg/response"
	"github.com/bookloop/bookloop-api/internal/pkg/validator"
)

// Handler handles cancellation HTTP requests
type Handler struct {
	service    *Service
	sweepBatch int
}

// NewHandler creates cancellation handler
func NewHandler(service *Service, sweepBatch int) *Handler {
	return &Handler{service: service, sweepBatch: sweepBatch}
}

// Initiate handles POST /cancellations/initiate
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	created, err := h.service.Initiate(r.Context(), middleware.GetUserID(r.Context()), req.toInput())
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, RequestResponseFromEntity(created))
}

// Respond handles POST /cancellations/{id}/respond
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid cancellation ID")
		return
	}

	var req RespondRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	updated, err := h.service.Respond(r.Context(), id, middleware.GetUserID(r.Context()), *req.Consent)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, RequestResponseFromEntity(updated))
}

// GetByTransaction handles GET /cancellations/transaction/{transactionId}
func (h *Handler) GetByTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionId"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction ID")
		return
	}

	req, err := h.service.GetLatestByTransaction(r.Context(), transactionID, middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, RequestResponseFromEntity(req))
}

// History handles GET /cancellations/{id}/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid cancellation ID")
		return
	}

	entries, err := h.service.History(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	items := make([]*HistoryResponse, len(entries))
	for i, e := range entries {
		items[i] = HistoryResponseFromEntity(e)
	}
	response.OK(w, items)
}

// ExpireOldRequests handles POST /cancellations/expire-old-requests
func (h *Handler) ExpireOldRequests(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Sweep(r.Context(), h.sweepBatch)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	response.OK(w, result)
}
