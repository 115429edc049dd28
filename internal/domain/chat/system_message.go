package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SystemType tags the payload variant of a system message.
type SystemType string

const (
	SystemCancellationRequest      SystemType = "cancellation_request"
	SystemCancellationResponse     SystemType = "cancellation_response"
	SystemCancellationAutoApproved SystemType = "cancellation_auto_approved"
)

// SystemPayload is implemented only by the payload types in this file.
type SystemPayload interface {
	SystemType() SystemType
	summary() string
}

// CancellationRequestPayload announces a new cancellation request.
type CancellationRequestPayload struct {
	CancellationID uuid.UUID `json:"cancellation_id"`
	TransactionID  uuid.UUID `json:"transaction_id"`
	InitiatorID    uuid.UUID `json:"initiator_id"`
	Reason         string    `json:"reason"`
	RefundType     string    `json:"refund_type"`
	RefundAmount   *int      `json:"refund_amount,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
	BookTitle      string    `json:"book_title"`
}

func (CancellationRequestPayload) SystemType() SystemType { return SystemCancellationRequest }

func (p CancellationRequestPayload) summary() string {
	return fmt.Sprintf("Cancellation requested for %q", p.BookTitle)
}

// CancellationResponsePayload carries the other party's answer.
type CancellationResponsePayload struct {
	CancellationID uuid.UUID `json:"cancellation_id"`
	TransactionID  uuid.UUID `json:"transaction_id"`
	ResponderID    uuid.UUID `json:"responder_id"`
	Status         string    `json:"status"` // approved or rejected
	BookTitle      string    `json:"book_title"`
}

func (CancellationResponsePayload) SystemType() SystemType { return SystemCancellationResponse }

func (p CancellationResponsePayload) summary() string {
	return fmt.Sprintf("Cancellation %s for %q", p.Status, p.BookTitle)
}

// CancellationAutoApprovedPayload is posted when the response window lapses.
type CancellationAutoApprovedPayload struct {
	CancellationID uuid.UUID `json:"cancellation_id"`
	TransactionID  uuid.UUID `json:"transaction_id"`
	RefundAmount   *int      `json:"refund_amount,omitempty"`
	BookTitle      string    `json:"book_title"`
}

func (CancellationAutoApprovedPayload) SystemType() SystemType { return SystemCancellationAutoApproved }

func (p CancellationAutoApprovedPayload) summary() string {
	return fmt.Sprintf("Cancellation for %q was approved automatically", p.BookTitle)
}

type systemEnvelope struct {
	Type SystemType      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeSystemPayload produces the stored {"type", "data"} form.
func EncodeSystemPayload(p SystemPayload) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(systemEnvelope{Type: p.SystemType(), Data: data})
}

// DecodeSystemPayload returns the concrete payload for a stored system message.
func DecodeSystemPayload(raw json.RawMessage) (SystemPayload, error) {
	var env systemEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	var (
		p   SystemPayload
		err error
	)
	switch env.Type {
	case SystemCancellationRequest:
		var v CancellationRequestPayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	case SystemCancellationResponse:
		var v CancellationResponsePayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	case SystemCancellationAutoApproved:
		var v CancellationAutoApprovedPayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown system message type %q", env.Type)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
