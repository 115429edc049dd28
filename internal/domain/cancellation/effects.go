package cancellation

import (
	"context"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/domain/chat"
	"github.com/bookloop/bookloop-api/internal/domain/notification"
	"github.com/bookloop/bookloop-api/internal/pkg/logger"
)

// MessageTransport posts structured system messages into a transaction chat.
type MessageTransport interface {
	PostSystemMessage(ctx context.Context, chatID, senderID uuid.UUID, payload chat.SystemPayload) (*chat.Message, error)
	Broadcast(ctx context.Context, chatID uuid.UUID, msg *chat.Message) error
}

// Notifier delivers in-app notifications. Implementations must not block on failure.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string, category notification.Category, relatedID uuid.UUID)
}

type notice struct {
	userID    uuid.UUID
	title     string
	body      string
	category  notification.Category
	relatedID uuid.UUID
}

type chatPost struct {
	chatID   uuid.UUID
	senderID uuid.UUID
	payload  chat.SystemPayload
}

// effects collects side effects during a database transaction. They are
// flushed only after commit and dropped on rollback.
type effects struct {
	notices []notice
	posts   []chatPost
}

func (e *effects) notify(n notice) {
	e.notices = append(e.notices, n)
}

func (e *effects) post(chatID uuid.NullUUID, senderID uuid.UUID, payload chat.SystemPayload) {
	if !chatID.Valid {
		return
	}
	e.posts = append(e.posts, chatPost{chatID: chatID.UUID, senderID: senderID, payload: payload})
}

func (e *effects) flush(ctx context.Context, transport MessageTransport, notifier Notifier) {
	for _, p := range e.posts {
		if transport == nil {
			break
		}
		msg, err := transport.PostSystemMessage(ctx, p.chatID, p.senderID, p.payload)
		if err != nil {
			logger.LogWarn(ctx, "Failed to post system message",
				"chat_id", p.chatID.String(),
				"type", string(p.payload.SystemType()),
				"error", err.Error(),
			)
			continue
		}
		if err := transport.Broadcast(ctx, p.chatID, msg); err != nil {
			logger.LogWarn(ctx, "Failed to broadcast system message",
				"chat_id", p.chatID.String(),
				"message_id", msg.ID.String(),
				"error", err.Error(),
			)
		}
	}

	if notifier == nil {
		return
	}
	for _, n := range e.notices {
		notifier.Notify(ctx, n.userID, n.title, n.body, n.category, n.relatedID)
	}
}
