package moderation

import (
	"time"

	"github.com/google/uuid"
)

// SubmitReportRequest is the body of POST /reports/submit
type SubmitReportRequest struct {
	ChatID         uuid.UUID  `json:"chatId" validate:"required"`
	ReportedUserID uuid.UUID  `json:"reportedUserId" validate:"required"`
	MessageID      *uuid.UUID `json:"messageId"`
	Reason         string     `json:"reason" validate:"required,report_reason"`
	Description    string     `json:"description" validate:"max=1000"`
}

func (r *SubmitReportRequest) toInput() SubmitInput {
	in := SubmitInput{
		ChatID:      r.ChatID,
		ReportedID:  r.ReportedUserID,
		Reason:      Reason(r.Reason),
		Description: r.Description,
	}
	if r.MessageID != nil {
		in.MessageID = uuid.NullUUID{UUID: *r.MessageID, Valid: true}
	}
	return in
}

// AppealRequest is the body of POST /reports/appeal/{reportId}
type AppealRequest struct {
	AppealReason string `json:"appealReason" validate:"required,min=20,max=2000"`
}

// ResolveAppealRequest is the body of POST /admin/reports/{reportId}/appeal/resolve
type ResolveAppealRequest struct {
	Overturn *bool  `json:"overturn" validate:"required"`
	Note     string `json:"note" validate:"max=1000"`
}

// SubmitResponse reports the adjudication outcome.
type SubmitResponse struct {
	ReportID       uuid.UUID `json:"reportId"`
	AutoResolved   bool      `json:"autoResolved"`
	Confidence     float64   `json:"confidence"`
	SignalCount    int       `json:"signalCount"`
	PenaltyApplied int       `json:"penaltyApplied"`
}

// ReportResponse is the public view of a report.
type ReportResponse struct {
	ID              uuid.UUID     `json:"id"`
	ChatID          uuid.UUID     `json:"chatId"`
	ReporterID      uuid.UUID     `json:"reporterId"`
	ReportedID      uuid.UUID     `json:"reportedId"`
	MessageID       *uuid.UUID    `json:"messageId,omitempty"`
	Reason          Reason        `json:"reason"`
	Description     string        `json:"description,omitempty"`
	ConfidenceScore float64       `json:"confidenceScore"`
	SignalCount     int           `json:"signalCount"`
	AutoResolved    bool          `json:"autoResolved"`
	Status          Status        `json:"status"`
	PenaltyApplied  int           `json:"penaltyApplied"`
	AppealStatus    AppealStatus  `json:"appealStatus"`
	AppealReason    string        `json:"appealReason,omitempty"`
	AppealDate      *time.Time    `json:"appealDate,omitempty"`
	AppealOutcome   AppealOutcome `json:"appealOutcome,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

func ReportResponseFromEntity(r *Report) *ReportResponse {
	resp := &ReportResponse{
		ID:              r.ID,
		ChatID:          r.ChatID,
		ReporterID:      r.ReporterID,
		ReportedID:      r.ReportedID,
		Reason:          r.Reason,
		Description:     r.Description.String,
		ConfidenceScore: r.ConfidenceScore,
		SignalCount:     r.SignalCount,
		AutoResolved:    r.AutoResolved,
		Status:          r.Status,
		PenaltyApplied:  r.PenaltyApplied,
		AppealStatus:    r.AppealStatus,
		AppealReason:    r.AppealReason.String,
		AppealOutcome:   AppealOutcome(r.AppealOutcome.String),
		CreatedAt:       r.CreatedAt,
	}
	if r.MessageID.Valid {
		id := r.MessageID.UUID
		resp.MessageID = &id
	}
	if r.AppealDate.Valid {
		d := r.AppealDate.Time
		resp.AppealDate = &d
	}
	return resp
}

// ReportDetailResponse adds the stored signals for admins.
type ReportDetailResponse struct {
	*ReportResponse
	Signals []*StoredSignal `json:"signals"`
}

func reportList(reports []*Report) []*ReportResponse {
	items := make([]*ReportResponse, len(reports))
	for i, r := range reports {
		items[i] = ReportResponseFromEntity(r)
	}
	return items
}
