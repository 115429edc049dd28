package notification

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/pkg/apperr"
	"github.com/bookloop/bookloop-api/internal/pkg/logger"
)

var ErrNotificationNotFound = apperr.New(apperr.NotFound, "NOTIFICATION_NOT_FOUND", "notification not found")

// Service stores notifications and pushes them to online users.
type Service struct {
	repo      Repository
	publisher RealtimePublisher
}

// NewService creates notification service. publisher may be nil.
func NewService(repo Repository, publisher RealtimePublisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// Notify is fire-and-forget: failures are logged, never returned.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, title, body string, category Category, relatedID uuid.UUID) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      category,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if body != "" {
		n.Body = sql.NullString{String: body, Valid: true}
	}
	if relatedID != uuid.Nil {
		n.SetData(&NotificationData{RelatedID: &relatedID})
	}

	if err := s.repo.Create(ctx, n); err != nil {
		logger.LogWarn(ctx, "Failed to store notification",
			"user_id", userID.String(),
			"category", string(category),
			"error", err.Error(),
		)
		return
	}

	if s.publisher == nil {
		return
	}
	unread, err := s.repo.CountUnreadByUser(ctx, userID)
	if err != nil {
		unread = -1
	}
	if err := s.publisher.NotifyNew(ctx, userID, NotificationResponseFromEntity(n), unread); err != nil {
		logger.LogWarn(ctx, "Failed to push notification",
			"user_id", userID.String(),
			"error", err.Error(),
		)
	}
}

// List returns notifications for user
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// GetUnreadCount returns unread count
func (s *Service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnreadByUser(ctx, userID)
}

// MarkAsRead marks a single notification of userID as read
func (s *Service) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	ok, err := s.repo.MarkAsRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllAsRead marks all notifications as read
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}
