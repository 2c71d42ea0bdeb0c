package service

import (
	"context"
	"log/slog"

	"zephyr/internal/models"
	"zephyr/internal/repository"
)

// NotificationService appends to and clears users' notification lists.
type NotificationService struct {
	repo     repository.NotificationRepository
	realtime RealtimePublisher
}

// NewNotificationService returns a NotificationService. realtime may be nil.
func NewNotificationService(repo repository.NotificationRepository, realtime RealtimePublisher) *NotificationService {
	return &NotificationService{repo: repo, realtime: realtime}
}

// Notify stores n and pushes it to the recipient's channel. A failed push is logged only.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	if s.realtime != nil {
		logSideEffect(ctx, "notification push", s.realtime.PublishNotification(ctx, n),
			slog.Uint64("user_id", uint64(n.UserID)))
	}
	return nil
}

// FromActor builds a notification carrying actor's profile snapshot.
func FromActor(actor *models.User, recipientID uint, category models.NotificationCategory, typ, message string, refID uint) *models.Notification {
	n := &models.Notification{
		UserID:   recipientID,
		Category: category,
		Type:     typ,
		Message:  message,
		RefID:    refID,
	}
	if actor != nil {
		n.ActorID = actor.ID
		n.ActorName = actor.DisplayName
		n.ActorPicture = actor.ProfilePicture
	}
	return n
}

func (s *NotificationService) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	return s.repo.ListByUser(ctx, userID, 0)
}

// ClearAll empties the user's list.
func (s *NotificationService) ClearAll(ctx context.Context, userID uint) error {
	_, err := s.repo.DeleteAllForUser(ctx, userID)
	return err
}

// ClearFriendRequest removes the request notification requester left for recipient.
func (s *NotificationService) ClearFriendRequest(ctx context.Context, recipientID, requesterID uint) error {
	return s.repo.DeleteFriendRequest(ctx, recipientID, requesterID)
}
