package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transport posts structured system messages into chats.
type Transport struct {
	repo Repository
	hub  *Hub
	now  func() time.Time
}

func NewTransport(repo Repository, hub *Hub) *Transport {
	return &Transport{repo: repo, hub: hub, now: time.Now}
}

// PostSystemMessage stores a system message. senderID may be uuid.Nil for
// messages authored by the system itself.
func (t *Transport) PostSystemMessage(ctx context.Context, chatID, senderID uuid.UUID, payload SystemPayload) (*Message, error) {
	raw, err := EncodeSystemPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode system payload: %w", err)
	}

	msg := &Message{
		ID:          uuid.New(),
		RoomID:      chatID,
		SenderID:    uuid.NullUUID{UUID: senderID, Valid: senderID != uuid.Nil},
		Content:     payload.summary(),
		MessageType: MessageTypeSystem,
		Payload:     raw,
		CreatedAt:   t.now().UTC(),
	}
	if err := t.repo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store system message: %w", err)
	}
	return msg, nil
}

// Broadcast pushes msg to everyone connected to the chat.
func (t *Transport) Broadcast(_ context.Context, chatID uuid.UUID, msg *Message) error {
	if t.hub == nil {
		return nil
	}
	return t.hub.BroadcastToRoom(chatID, &WSEvent{
		Type:    EventNewMessage,
		RoomID:  chatID,
		Message: msg,
	})
}

// MessageInChat returns the message if it belongs to chatID.
func (t *Transport) MessageInChat(ctx context.Context, chatID, messageID uuid.UUID) (*Message, error) {
	msg, err := t.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.RoomID != chatID {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

// RequireMember checks the chat exists and userID takes part in it.
func (t *Transport) RequireMember(ctx context.Context, chatID, userID uuid.UUID) error {
	room, err := t.repo.GetRoomByID(ctx, chatID)
	if err != nil {
		return err
	}
	if room == nil {
		return ErrRoomNotFound
	}
	ok, err := t.repo.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotRoomMember
	}
	return nil
}
