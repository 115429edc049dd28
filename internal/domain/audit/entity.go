package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions written by the moderation and cancellation flows.
const (
	ActionReportSubmitted      = "report.submitted"
	ActionReportPenalty        = "report.penalty_applied"
	ActionReportAppealed       = "report.appealed"
	ActionAppealResolved       = "report.appeal_resolved"
	ActionCancellationInitiate = "cancellation.initiated"
	ActionCancellationRespond  = "cancellation.responded"
	ActionCancellationExpire   = "cancellation.expired"
	ActionCancellationProcess  = "cancellation.processed"
)

const (
	EntityChatReport   = "chat_report"
	EntityCancellation = "cancellation_request"
)

// Entry is an append-only audit record. ActorID is null for system actions.
type Entry struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	ActorID    uuid.NullUUID   `db:"actor_id" json:"actor_id"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   uuid.UUID       `db:"entity_id" json:"entity_id"`
	Details    json.RawMessage `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// NewEntry builds an entry; details is marshalled to JSON.
func NewEntry(actorID uuid.UUID, action, entityType string, entityID uuid.UUID, details interface{}, now time.Time) *Entry {
	e := &Entry{
		ID:         uuid.New(),
		ActorID:    uuid.NullUUID{UUID: actorID, Valid: actorID != uuid.Nil},
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  now,
	}
	if details != nil {
		e.Details, _ = json.Marshal(details)
	}
	return e
}

// Filter for listing entries
type Filter struct {
	EntityType string
	EntityID   *uuid.UUID
	Action     string
	Limit      int
	Offset     int
}
