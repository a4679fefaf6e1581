package repository

import (
	"context"

	"gorm.io/gorm"

	"gitpress/models"
)

type notificationRepo struct {
	db *gorm.DB
}

func (r *notificationRepo) Save(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&notifications).Error
	return notifications, err
}
