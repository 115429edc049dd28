package cancellation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/domain/transaction"
)

// Reason for cancelling a transaction
type Reason string

const (
	ReasonChangedMind       Reason = "changed_mind"
	ReasonFoundAlternative  Reason = "found_alternative"
	ReasonConditionMismatch Reason = "condition_mismatch"
	ReasonArrangementIssue  Reason = "arrangement_issue"
	ReasonPersonal          Reason = "personal_reason"
	ReasonOther             Reason = "other"
)

// RefundType selects how the refund amount is derived from the book's baseline.
type RefundType string

const (
	RefundFull    RefundType = "full"
	RefundPartial RefundType = "partial"
	RefundNone    RefundType = "none"
)

// Status of a cancellation request.
//
//	pending -> consented -> processed
//	pending -> rejected
//	pending -> expired
type Status string

const (
	StatusPending   Status = "pending"
	StatusConsented Status = "consented"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusProcessed Status = "processed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusRejected || s == StatusExpired
}

// HistoryAction is the kind of a history row.
type HistoryAction string

const (
	ActionInitiated HistoryAction = "initiated"
	ActionConsented HistoryAction = "consented"
	ActionRejected  HistoryAction = "rejected"
	ActionSystem    HistoryAction = "system"
)

// System history events, stored in details.event.
const (
	EventCompleted    = "completed"
	EventAutoApproved = "auto_approved"
	EventExpired      = "expired"
)

// Request is one attempt to cancel a transaction.
type Request struct {
	ID                uuid.UUID          `db:"id"`
	TransactionID     uuid.UUID          `db:"transaction_id"`
	InitiatorID       uuid.UUID          `db:"initiator_id"`
	OtherPartyID      uuid.UUID          `db:"other_party_id"`
	Reason            Reason             `db:"reason"`
	Description       string             `db:"description"`
	RefundType        RefundType         `db:"refund_type"`
	RefundAmount      *int               `db:"refund_amount"`
	Status            Status             `db:"status"`
	PreviousStatus    transaction.Status `db:"previous_status"`
	OtherConfirmed    *bool              `db:"other_confirmed"`
	OtherResponseDate *time.Time         `db:"other_response_date"`
	AutoResolved      bool               `db:"auto_resolved"`
	ExpiresAt         time.Time          `db:"expires_at"`
	ProcessedAt       *time.Time         `db:"processed_at"`
	CreatedAt         time.Time          `db:"created_at"`
}

// Answered reports whether the other party has already responded.
func (r *Request) Answered() bool {
	return r.OtherConfirmed != nil
}

// Expired reports whether the response window has closed at now.
func (r *Request) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsParty reports whether userID is the initiator or the other party.
func (r *Request) IsParty(userID uuid.UUID) bool {
	return userID == r.InitiatorID || userID == r.OtherPartyID
}

// History is an append-only record of a request transition.
type History struct {
	ID             uuid.UUID       `db:"id"`
	CancellationID uuid.UUID       `db:"cancellation_id"`
	Action         HistoryAction   `db:"action"`
	ActorID        uuid.NullUUID   `db:"actor_id"`
	Details        json.RawMessage `db:"details"`
	CreatedAt      time.Time       `db:"created_at"`
}

func newHistory(cancellationID uuid.UUID, action HistoryAction, actorID uuid.UUID, details map[string]any, now time.Time) *History {
	h := &History{
		ID:             uuid.New(),
		CancellationID: cancellationID,
		Action:         action,
		ActorID:        uuid.NullUUID{UUID: actorID, Valid: actorID != uuid.Nil},
		CreatedAt:      now,
	}
	if details != nil {
		h.Details, _ = json.Marshal(details)
	}
	return h
}

// CalculateRefund derives the refund from the book's minimum credits.
// A partial refund without an explicit amount is half the baseline, rounded down.
func CalculateRefund(refundType RefundType, baseline int, explicit *int) (*int, error) {
	switch refundType {
	case RefundFull:
		amount := baseline
		return &amount, nil
	case RefundPartial:
		if explicit != nil {
			if *explicit < 0 || *explicit > baseline {
				return nil, ErrInvalidRefundAmount
			}
			amount := *explicit
			return &amount, nil
		}
		amount := baseline / 2
		return &amount, nil
	case RefundNone:
		return nil, nil
	}
	return nil, ErrInvalidRefundType
}
