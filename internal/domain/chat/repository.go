package chat

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines chat data access interface
type Repository interface {
	GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)
	ListRoomIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)

	CreateMessage(ctx context.Context, msg *Message) error
	GetMessageByID(ctx context.Context, id uuid.UUID) (*Message, error)
	ListMessagesByRoom(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*Message, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new chat repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	query := `SELECT id, transaction_id, created_at FROM chat_rooms WHERE id = $1`
	var room Room
	err := r.db.GetContext(ctx, &room, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *repository) ListRoomIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT room_id FROM chat_room_members WHERE user_id = $1`
	ids := make([]uuid.UUID, 0)
	err := r.db.SelectContext(ctx, &ids, query, userID)
	return ids, err
}

func (r *repository) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM chat_room_members WHERE room_id = $1 AND user_id = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, roomID, userID)
	return exists, err
}

func (r *repository) CreateMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO chat_messages (id, room_id, sender_id, content, message_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.RoomID,
		msg.SenderID,
		msg.Content,
		msg.MessageType,
		msg.Payload,
		msg.CreatedAt,
	)
	return err
}

func (r *repository) GetMessageByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	query := `
		SELECT id, room_id, sender_id, content, message_type, COALESCE(payload, 'null'::jsonb) AS payload, created_at
		FROM chat_messages WHERE id = $1
	`
	var msg Message
	err := r.db.GetContext(ctx, &msg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *repository) ListMessagesByRoom(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*Message, error) {
	query := `
		SELECT id, room_id, sender_id, content, message_type, COALESCE(payload, 'null'::jsonb) AS payload, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	messages := make([]*Message, 0)
	err := r.db.SelectContext(ctx, &messages, query, roomID, limit, offset)
	return messages, err
}
