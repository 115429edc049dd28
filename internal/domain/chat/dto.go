package chat

import (
	"time"

	"github.com/google/uuid"
)

// MessageResponse is the wire form of a chat message. System messages carry
// their decoded payload in System.
type MessageResponse struct {
	ID          uuid.UUID      `json:"id"`
	RoomID      uuid.UUID      `json:"room_id"`
	SenderID    *uuid.UUID     `json:"sender_id,omitempty"`
	Content     string         `json:"content"`
	MessageType MessageType    `json:"message_type"`
	System      *SystemView    `json:"system,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SystemView is the decoded payload of a system message.
type SystemView struct {
	Type SystemType    `json:"type"`
	Data SystemPayload `json:"data"`
}

func MessageResponseFromEntity(m *Message) *MessageResponse {
	resp := &MessageResponse{
		ID:          m.ID,
		RoomID:      m.RoomID,
		Content:     m.Content,
		MessageType: m.MessageType,
		CreatedAt:   m.CreatedAt,
	}
	if m.SenderID.Valid {
		id := m.SenderID.UUID
		resp.SenderID = &id
	}
	if m.MessageType == MessageTypeSystem && len(m.Payload) > 0 {
		if p, err := DecodeSystemPayload(m.Payload); err == nil {
			resp.System = &SystemView{Type: p.SystemType(), Data: p}
		}
	}
	return resp
}
