package cancellation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InitiateRequest is the body of POST /cancellations/initiate
type InitiateRequest struct {
	TransactionID uuid.UUID `json:"transactionId" validate:"required"`
	Reason        string    `json:"reason" validate:"required,cancel_reason"`
	Description   string    `json:"description" validate:"max=1000"`
	RefundType    string    `json:"refundType" validate:"required,refund_type"`
	RefundAmount  *int      `json:"refundAmount" validate:"omitempty,gte=0"`
}

func (r *InitiateRequest) toInput() InitiateInput {
	return InitiateInput{
		TransactionID: r.TransactionID,
		Reason:        Reason(r.Reason),
		Description:   r.Description,
		RefundType:    RefundType(r.RefundType),
		RefundAmount:  r.RefundAmount,
	}
}

// RespondRequest is the body of POST /cancellations/{id}/respond
type RespondRequest struct {
	Consent *bool `json:"consent" validate:"required"`
}

// RequestResponse is the public view of a cancellation request.
type RequestResponse struct {
	ID                uuid.UUID  `json:"id"`
	TransactionID     uuid.UUID  `json:"transactionId"`
	InitiatorID       uuid.UUID  `json:"initiatorId"`
	OtherPartyID      uuid.UUID  `json:"otherPartyId"`
	Reason            Reason     `json:"reason"`
	Description       string     `json:"description,omitempty"`
	RefundType        RefundType `json:"refundType"`
	RefundAmount      *int       `json:"refundAmount"`
	Status            Status     `json:"status"`
	Closed            bool       `json:"closed"`
	OtherConfirmed    *bool      `json:"otherConfirmed"`
	OtherResponseDate *time.Time `json:"otherResponseDate,omitempty"`
	AutoResolved      bool       `json:"autoResolved"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func RequestResponseFromEntity(r *Request) *RequestResponse {
	return &RequestResponse{
		ID:                r.ID,
		TransactionID:     r.TransactionID,
		InitiatorID:       r.InitiatorID,
		OtherPartyID:      r.OtherPartyID,
		Reason:            r.Reason,
		Description:       r.Description,
		RefundType:        r.RefundType,
		RefundAmount:      r.RefundAmount,
		Status:            r.Status,
		Closed:            r.Status.Terminal(),
		OtherConfirmed:    r.OtherConfirmed,
		OtherResponseDate: r.OtherResponseDate,
		AutoResolved:      r.AutoResolved,
		ExpiresAt:         r.ExpiresAt,
		CreatedAt:         r.CreatedAt,
	}
}

// HistoryResponse is one entry of the audit trail.
type HistoryResponse struct {
	ID        uuid.UUID       `json:"id"`
	Action    HistoryAction   `json:"action"`
	ActorID   *uuid.UUID      `json:"actorId"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func HistoryResponseFromEntity(h *History) *HistoryResponse {
	resp := &HistoryResponse{
		ID:        h.ID,
		Action:    h.Action,
		Details:   h.Details,
		CreatedAt: h.CreatedAt,
	}
	if h.ActorID.Valid {
		id := h.ActorID.UUID
		resp.ActorID = &id
	}
	return resp
}
