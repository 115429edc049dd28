package notification

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Category groups notifications for the client.
type Category string

const (
	CategoryCancellationRequest  Category = "cancellation_request"
	CategoryCancellationResponse Category = "cancellation_response"
	CategoryCancellationExpired  Category = "cancellation_auto_approved"
	CategoryReportPenalty        Category = "report_penalty"
	CategoryReportAppeal         Category = "report_appeal"
	CategoryAppealResolved       Category = "appeal_resolved"
)

// Notification represents a user notification
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      Category        `db:"type" json:"type"`
	Title     string          `db:"title" json:"title"`
	Body      sql.NullString  `db:"body" json:"body,omitempty"`
	Data      json.RawMessage `db:"data" json:"data,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	ReadAt    sql.NullTime    `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// NotificationData links a notification to the entity it is about.
type NotificationData struct {
	RelatedID *uuid.UUID `json:"related_id,omitempty"`
}

// SetData encodes data to JSON
func (n *Notification) SetData(data *NotificationData) {
	if data != nil {
		n.Data, _ = json.Marshal(data)
	}
}

// GetData decodes data from JSON
func (n *Notification) GetData() *NotificationData {
	if n.Data == nil {
		return &NotificationData{}
	}
	var data NotificationData
	_ = json.Unmarshal(n.Data, &data)
	return &data
}
