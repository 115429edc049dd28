package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType represents message type
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

// Room is a conversation attached to a lending transaction.
type Room struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	TransactionID uuid.NullUUID `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// Message represents a chat message. System messages have no sender and
// carry an encoded SystemPayload in Payload.
type Message struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	RoomID      uuid.UUID       `db:"room_id" json:"room_id"`
	SenderID    uuid.NullUUID   `db:"sender_id" json:"sender_id"`
	Content     string          `db:"content" json:"content"`
	MessageType MessageType     `db:"message_type" json:"message_type"`
	Payload     json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
