package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines notification data access
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error)
	CountUnreadByUser(ctx context.Context, userID uuid.UUID) (int, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) (bool, error)
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates notification repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, body, data, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Body,
		n.Data,
		n.IsRead,
		n.CreatedAt,
	)
	return err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	query := `
		SELECT id, user_id, type, title, body, data, is_read, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	notifications := make([]*Notification, 0)
	err := r.db.SelectContext(ctx, &notifications, query, userID, limit, offset)
	return notifications, err
}

func (r *repository) CountUnreadByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`
	var count int
	err := r.db.GetContext(ctx, &count, query, userID)
	return count, err
}

// MarkAsRead only touches rows owned by userID.
func (r *repository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `UPDATE notifications SET is_read = true, read_at = NOW() WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func (r *repository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = true, read_at = NOW() WHERE user_id = $1 AND NOT is_read`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *repository) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < $1 AND is_read = true`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
