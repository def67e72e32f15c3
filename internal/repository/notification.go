package repository

import (
	"context"

	"cnom/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository defines persistence operations for in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByProfile(ctx context.Context, profileID string, limit int) ([]models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository returns a new NotificationRepository implementation.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *notificationRepository) ListByProfile(ctx context.Context, profileID string, limit int) ([]models.Notification, error) {
	limit, _ = clampPage(limit, 0)
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return notifications, nil
}
