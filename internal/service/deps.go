// Package service implements Zephyr's use cases on top of the repositories.
package service

import (
	"context"
	"errors"
	"log/slog"

	"zephyr/internal/events"
	"zephyr/internal/geo"
	"zephyr/internal/middleware"
	"zephyr/internal/models"
	"zephyr/internal/storage"
)

// Mailer delivers verification codes.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

// MediaStore persists uploaded files and returns public URLs.
type MediaStore interface {
	UploadMedia(ctx context.Context, prefix string, data []byte) (*storage.Object, error)
	UploadPicture(ctx context.Context, prefix string, data []byte) (string, error)
}

// RealtimePublisher fans events out to connected clients.
type RealtimePublisher interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
	PublishDirectMessage(ctx context.Context, msg *models.Message) error
	PublishCommunityMessage(ctx context.Context, msg *models.CommunityMessage) error
}

// EventPublisher records domain events. Delivery is best-effort.
type EventPublisher interface {
	Emit(ctx context.Context, e events.Event)
}

// LocationIndex stores user positions and answers radius queries.
type LocationIndex interface {
	Upsert(ctx context.Context, userID uint, lng, lat float64) error
	Get(ctx context.Context, userID uint) (*geo.UserLocation, error)
	Nearby(ctx context.Context, lng, lat, maxMeters float64, exclude []uint, limit int) ([]uint, error)
}

// ChatModel produces a reply for a free-text prompt.
type ChatModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

func emit(ctx context.Context, p EventPublisher, e events.Event) {
	if p == nil {
		return
	}
	p.Emit(ctx, e)
}

func logSideEffect(ctx context.Context, what string, err error, attrs ...any) {
	if err == nil {
		return
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	middleware.Logger.WarnContext(ctx, what+" failed", attrs...)
}

// mediaError turns storage rejections into validation errors.
func mediaError(err error) error {
	switch {
	case errors.Is(err, storage.ErrEmpty):
		return models.NewValidationError("File is empty")
	case errors.Is(err, storage.ErrTooLarge):
		return models.NewValidationError("File is too large")
	case errors.Is(err, storage.ErrUnsupportedType):
		return models.NewValidationError("Only image and video files are allowed")
	}
	return models.NewUnavailableError("Media storage unavailable", err)
}
