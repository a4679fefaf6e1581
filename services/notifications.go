package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitpress/models"
	"gitpress/repository"
)

// NotificationService records author-facing events. Notification writes are
// best-effort: a failed insert is logged and never fails the operation that
// triggered it.
type NotificationService struct {
	Store  repository.NotificationStore
	Logger *zap.Logger
	NewID  func() string
	Now    func() time.Time
}

func NewNotificationService(store repository.NotificationStore, logger *zap.Logger, newID func() string, now func() time.Time) *NotificationService {
	return &NotificationService{Store: store, Logger: logger, NewID: newID, Now: now}
}

func (s *NotificationService) Notify(ctx context.Context, authorID, notificationType, articleID, message string) {
	n := &models.Notification{
		ID:        s.NewID(),
		AuthorID:  authorID,
		Type:      notificationType,
		ArticleID: articleID,
		Message:   message,
		CreatedAt: s.Now(),
	}
	if err := s.Store.Save(ctx, n); err != nil {
		s.Logger.Error("failed to save notification",
			zap.String("author_id", authorID),
			zap.String("type", notificationType),
			zap.Error(err))
	}
}

func (s *NotificationService) ListForAuthor(ctx context.Context, authorID string, limit, offset int) ([]models.Notification, error) {
	return s.Store.ListByAuthor(ctx, authorID, limit, offset)
}
