package models

import (
	"fmt"
	"time"
)

// AttachmentType classifies a message attachment.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
)

// Conversation is a direct-message channel between exactly two users.
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PairKey   string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// TableName specifies the table name for GORM
func (Conversation) TableName() string {
	return "conversations"
}

// PairKey returns the order-independent key for a pair of users.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// ConversationParticipant links a user to a conversation.
type ConversationParticipant struct {
	ConversationID uint      `gorm:"primaryKey;autoIncrement:false" json:"conversation_id"`
	UserID         uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// Message is one direct message.
type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConversationID uint           `gorm:"not null;index:idx_messages_conv_created" json:"conversation_id"`
	SenderID       uint           `gorm:"not null" json:"sender_id"`
	Content        string         `gorm:"type:text" json:"content"`
	FileURL        string         `json:"file_url,omitempty"`
	FileType       AttachmentType `gorm:"type:varchar(10)" json:"file_type,omitempty"`
	CreatedAt      time.Time      `gorm:"index:idx_messages_conv_created" json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}
