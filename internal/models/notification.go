package models

import "time"

// NotificationCategory groups notifications in the client.
type NotificationCategory string

const (
	NotificationFriends   NotificationCategory = "friends"
	NotificationCommunity NotificationCategory = "community"
	NotificationZepchats  NotificationCategory = "zepchats"
	NotificationOthers    NotificationCategory = "others"
)

// Notification types.
const (
	NotificationTypeFriendRequest  = "friend_request"
	NotificationTypeFriendAccepted = "friend_accepted"
	NotificationTypeCommunityAdded = "community_added"
	NotificationTypeCommunityAdmin = "community_admin"
	NotificationTypeZepReply       = "zep_reply"
)

// Notification is one entry of a user's append-only notification list.
type Notification struct {
	ID           uint                 `gorm:"primaryKey" json:"id"`
	UserID       uint                 `gorm:"not null;index" json:"user_id"`
	Category     NotificationCategory `gorm:"type:varchar(20);not null" json:"category"`
	Type         string               `gorm:"size:40;not null;index" json:"type"`
	Message      string               `gorm:"type:text" json:"message"`
	ActorID      uint                 `json:"actor_id"`
	ActorName    string               `gorm:"size:60" json:"actor_name"`
	ActorPicture string               `json:"actor_picture"`
	RefID        uint                 `gorm:"index" json:"ref_id,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}
