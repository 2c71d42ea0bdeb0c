package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"zephyr/internal/aichat"
	"zephyr/internal/middleware"
	"zephyr/internal/models"
)

const maxPromptLen = 4000

// AIService answers gaming questions through the configured chat model.
type AIService struct {
	model ChatModel
}

func NewAIService(model ChatModel) *AIService {
	return &AIService{model: model}
}

func (s *AIService) Chat(ctx context.Context, userID uint, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", models.NewValidationError("Prompt is required")
	}
	if utf8.RuneCountInString(prompt) > maxPromptLen {
		return "", models.NewValidationError("Prompt is too long")
	}
	if s.model == nil {
		return "", models.NewUnavailableError("AI chat is not configured", aichat.ErrNotConfigured)
	}
	reply, err := s.model.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, aichat.ErrNotConfigured) {
			return "", models.NewUnavailableError("AI chat is not configured", err)
		}
		middleware.Logger.WarnContext(ctx, "ai chat failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
		return "", models.NewUnavailableError("AI chat is temporarily unavailable", err)
	}
	return reply, nil
}
