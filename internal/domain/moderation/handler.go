package moderation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/middleware"
	"github.com/bookloop/bookloop-api/internal/pkg/errorhandler"
	"github.com/bookloop/bookloop-api/internal/pkg/response"
	"github.com/bookloop/bookloop-api/internal/pkg/validator"
)

// Handler handles report HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates moderation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Submit handles POST /reports/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitReportRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	result, err := h.service.Submit(r.Context(), middleware.GetUserID(r.Context()), req.toInput())
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, SubmitResponse{
		ReportID:       result.ReportID,
		AutoResolved:   result.AutoResolved,
		Confidence:     result.Confidence,
		SignalCount:    result.SignalCount,
		PenaltyApplied: result.PenaltyApplied,
	})
}

// Appeal handles POST /reports/appeal/{reportId}
func (h *Handler) Appeal(w http.ResponseWriter, r *http.Request) {
	reportID, err := uuid.Parse(chi.URLParam(r, "reportId"))
	if err != nil {
		response.BadRequest(w, "Invalid report ID")
		return
	}

	var req AppealRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	report, err := h.service.Appeal(r.Context(), reportID, middleware.GetUserID(r.Context()), req.AppealReason)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, ReportResponseFromEntity(report))
}

// ListMyReports handles GET /reports/my-reports
func (h *Handler) ListMyReports(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.Pagination(r)
	reports, total, err := h.service.ListMyReports(r.Context(), middleware.GetUserID(r.Context()), ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	response.WithMeta(w, reportList(reports), response.Meta{Total: total, Limit: limit, Offset: offset})
}

// ListAgainstMe handles GET /reports/against-me
func (h *Handler) ListAgainstMe(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.Pagination(r)
	reports, total, err := h.service.ListAgainstMe(r.Context(), middleware.GetUserID(r.Context()), ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	response.WithMeta(w, reportList(reports), response.Meta{Total: total, Limit: limit, Offset: offset})
}

// GetTrustScore handles GET /reports/trust-score
func (h *Handler) GetTrustScore(w http.ResponseWriter, r *http.Request) {
	score, err := h.service.GetTrustScore(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	response.OK(w, score)
}

// ListPendingAppeals handles GET /admin/reports/appeals
func (h *Handler) ListPendingAppeals(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.Pagination(r)
	reports, total, err := h.service.ListPendingAppeals(r.Context(), ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	response.WithMeta(w, reportList(reports), response.Meta{Total: total, Limit: limit, Offset: offset})
}

// GetReport handles GET /admin/reports/{reportId}
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := uuid.Parse(chi.URLParam(r, "reportId"))
	if err != nil {
		response.BadRequest(w, "Invalid report ID")
		return
	}

	report, signals, err := h.service.GetReportDetail(r.Context(), reportID)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, ReportDetailResponse{ReportResponse: ReportResponseFromEntity(report), Signals: signals})
}

// ResolveAppeal handles POST /admin/reports/{reportId}/appeal/resolve
func (h *Handler) ResolveAppeal(w http.ResponseWriter, r *http.Request) {
	reportID, err := uuid.Parse(chi.URLParam(r, "reportId"))
	if err != nil {
		response.BadRequest(w, "Invalid report ID")
		return
	}

	var req ResolveAppealRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	report, err := h.service.ResolveAppeal(r.Context(), middleware.GetUserID(r.Context()), reportID, *req.Overturn, req.Note)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, ReportResponseFromEntity(report))
}
