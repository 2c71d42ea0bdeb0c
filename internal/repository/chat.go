package repository

import (
	"context"
	"errors"

	"zephyr/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository persists direct-message conversations and their messages.
type ChatRepository interface {
	FindOrCreateConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	GetConversationByPair(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID uint, limit int, beforeID uint) ([]models.Message, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// FindOrCreateConversation returns the single conversation for the pair, creating it
// and both participant rows if needed. Concurrent callers converge on one row through
// the unique pair_key.
func (r *chatRepository) FindOrCreateConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	db := conn(ctx, r.db)
	key := models.PairKey(userA, userB)

	candidate := models.Conversation{PairKey: key}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoNothing: true,
	}).Create(&candidate).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var conv models.Conversation
	if err := db.Where("pair_key = ?", key).First(&conv).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	participants := []models.ConversationParticipant{
		{ConversationID: conv.ID, UserID: userA},
		{ConversationID: conv.ID, UserID: userB},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&participants).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &conv, nil
}

// GetConversationByPair returns (nil, nil) when the two users never talked.
func (r *chatRepository) GetConversationByPair(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := conn(ctx, r.db).Where("pair_key = ?", models.PairKey(userA, userB)).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &conv, nil
}

func (r *chatRepository) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	var n int64
	if err := conn(ctx, r.db).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	db := conn(ctx, r.db)
	if err := db.Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Model(&models.Conversation{}).Where("id = ?", msg.ConversationID).
		Update("updated_at", msg.CreatedAt).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListMessages returns up to limit messages older than beforeID (0 for the newest),
// in chronological order.
func (r *chatRepository) ListMessages(ctx context.Context, conversationID uint, limit int, beforeID uint) ([]models.Message, error) {
	db := conn(ctx, r.db).Where("conversation_id = ?", conversationID)
	if beforeID > 0 {
		db = db.Where("id < ?", beforeID)
	}

	var msgs []models.Message
	if err := db.Order("created_at DESC, id DESC").Limit(clampLimit(limit, 50, 100)).Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
