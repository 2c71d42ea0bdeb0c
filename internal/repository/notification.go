package repository

import (
	"context"

	"zephyr/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository stores per-user notification lists.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error)
	DeleteAllForUser(ctx context.Context, userID uint) (int64, error)
	DeleteFriendRequest(ctx context.Context, recipientID, requesterID uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := conn(ctx, r.db).Create(n).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListByUser returns the newest notifications first.
func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	var out []models.Notification
	if err := conn(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit, 100, 500)).
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *notificationRepository) DeleteAllForUser(ctx context.Context, userID uint) (int64, error) {
	res := conn(ctx, r.db).Where("user_id = ?", userID).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteFriendRequest drops the pending-request notification the requester left for recipient.
func (r *notificationRepository) DeleteFriendRequest(ctx context.Context, recipientID, requesterID uint) error {
	err := conn(ctx, r.db).
		Where("user_id = ? AND type = ? AND actor_id = ?", recipientID, models.NotificationTypeFriendRequest, requesterID).
		Delete(&models.Notification{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
