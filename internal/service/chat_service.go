package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"zephyr/internal/models"
	"zephyr/internal/repository"
	"zephyr/internal/validation"
)

// MessageInput is the body of a direct or community message.
type MessageInput struct {
	Content  string                `json:"content"`
	FileURL  string                `json:"file_url"`
	FileType models.AttachmentType `json:"file_type"`
}

func (in *MessageInput) normalize() error {
	in.Content = strings.TrimSpace(in.Content)
	if in.FileURL == "" {
		in.FileType = ""
		return validation.ValidateBody(in.Content)
	}
	if in.FileType != models.AttachmentImage && in.FileType != models.AttachmentVideo {
		return fmt.Errorf("file type must be image or video")
	}
	if in.Content == "" {
		return nil
	}
	return validation.ValidateBody(in.Content)
}

// Attachment is an uploaded file ready to be referenced from a message.
type Attachment struct {
	URL      string                `json:"file_url"`
	FileType models.AttachmentType `json:"file_type"`
}

// ChatService handles direct messages between friends.
type ChatService struct {
	chats    repository.ChatRepository
	friends  repository.FriendRepository
	realtime RealtimePublisher
	media    MediaStore
}

func NewChatService(chats repository.ChatRepository, friends repository.FriendRepository, realtime RealtimePublisher, media MediaStore) *ChatService {
	return &ChatService{chats: chats, friends: friends, realtime: realtime, media: media}
}

// SendMessage stores a message from senderID to receiverID. Both must be friends.
func (s *ChatService) SendMessage(ctx context.Context, senderID, receiverID uint, in MessageInput) (*models.Message, error) {
	if senderID == receiverID {
		return nil, models.NewValidationError("Cannot message yourself")
	}
	if err := in.normalize(); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	edge, err := s.friends.GetBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if edge == nil || edge.Status != models.FriendshipStatusAccepted {
		return nil, models.NewForbiddenError("You can only message friends")
	}
	conv, err := s.chats.FindOrCreateConversation(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        in.Content,
		FileURL:        in.FileURL,
		FileType:       in.FileType,
	}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if s.realtime != nil {
		logSideEffect(ctx, "direct message push", s.realtime.PublishDirectMessage(ctx, msg),
			slog.Uint64("conversation_id", uint64(conv.ID)))
	}
	return msg, nil
}

// FetchMessages returns the conversation between userID and otherID, oldest first.
func (s *ChatService) FetchMessages(ctx context.Context, userID, otherID uint, limit int, beforeID uint) ([]models.Message, error) {
	conv, err := s.chats.GetConversationByPair(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return []models.Message{}, nil
	}
	ok, err := s.chats.IsParticipant(ctx, conv.ID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("Not a participant of this conversation")
	}
	return s.chats.ListMessages(ctx, conv.ID, limit, beforeID)
}

// UploadAttachment stores an image or video for later use in a message.
func (s *ChatService) UploadAttachment(ctx context.Context, userID uint, data []byte) (*Attachment, error) {
	if s.media == nil {
		return nil, models.NewUnavailableError("Media storage not configured", nil)
	}
	obj, err := s.media.UploadMedia(ctx, fmt.Sprintf("attachments/%d", userID), data)
	if err != nil {
		return nil, mediaError(err)
	}
	return &Attachment{URL: obj.URL, FileType: models.AttachmentType(obj.Kind)}, nil
}
