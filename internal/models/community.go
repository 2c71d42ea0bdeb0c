package models

import "time"

// CommunityRole defines a member's role in a community.
type CommunityRole string

const (
	// CommunityRoleAdmin is held by exactly one member of every community.
	CommunityRoleAdmin CommunityRole = "admin"
	// CommunityRoleMember is the default role.
	CommunityRoleMember CommunityRole = "member"
)

// Community holds descriptive metadata for a group.
type Community struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:80;not null;index" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Hashtags    []string  `gorm:"serializer:json;type:text" json:"hashtags"`
	IsPrivate   bool      `gorm:"not null;default:false" json:"is_private"`
	IsBanned    bool      `gorm:"not null;default:false;index" json:"is_banned"`
	Picture     string    `json:"picture"`
	CreatedBy   uint      `gorm:"not null" json:"created_by"`
	Version     uint      `gorm:"column:membership_version;not null;default:0" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	MemberCount int64 `gorm:"->;-:migration" json:"member_count"`
}

// TableName specifies the table name for GORM.
func (Community) TableName() string {
	return "communities"
}

// CommunityMember maps users to communities and tracks role.
// One row per user keeps the admin out of the plain member set.
type CommunityMember struct {
	CommunityID uint          `gorm:"primaryKey;autoIncrement:false" json:"community_id"`
	UserID      uint          `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Role        CommunityRole `gorm:"type:varchar(20);not null;default:'member';index" json:"role"`
	JoinedAt    time.Time     `gorm:"not null" json:"joined_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for GORM.
func (CommunityMember) TableName() string {
	return "community_members"
}

// CommunityMembers is the membership view of a community: one admin plus plain members in join order.
type CommunityMembers struct {
	CommunityID uint          `json:"community_id"`
	Admin       *UserSummary  `json:"admin"`
	Members     []MemberEntry `json:"members"`
}

// MemberEntry is one plain member with the time they joined.
type MemberEntry struct {
	User     UserSummary `json:"user"`
	JoinedAt time.Time   `json:"joined_at"`
}

// CommunityMessage is a message posted to a community's group chat.
type CommunityMessage struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CommunityID uint           `gorm:"not null;index:idx_community_messages_created" json:"community_id"`
	SenderID    uint           `gorm:"not null" json:"sender_id"`
	Content     string         `gorm:"type:text" json:"content"`
	FileURL     string         `json:"file_url,omitempty"`
	FileType    AttachmentType `gorm:"type:varchar(10)" json:"file_type,omitempty"`
	CreatedAt   time.Time      `gorm:"index:idx_community_messages_created" json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// TableName specifies the table name for GORM.
func (CommunityMessage) TableName() string {
	return "community_messages"
}
