package models

import "time"

// AuthorSnapshot freezes the author's public identity at the time of writing.
type AuthorSnapshot struct {
	AuthorID          uint   `gorm:"not null;index" json:"author_id"`
	AuthorDisplayName string `gorm:"size:60" json:"author_display_name"`
	AuthorAvatar      string `json:"author_avatar"`
}

// SnapshotOf copies the public identity of u.
func SnapshotOf(u *User) AuthorSnapshot {
	return AuthorSnapshot{
		AuthorID:          u.ID,
		AuthorDisplayName: u.DisplayName,
		AuthorAvatar:      u.ProfilePicture,
	}
}

// Zepchat is a forum post.
type Zepchat struct {
	ID      uint     `gorm:"primaryKey" json:"id"`
	Heading string   `gorm:"size:200;not null" json:"heading"`
	Content string   `gorm:"type:text;not null" json:"content"`
	Tags    []string `gorm:"serializer:json;type:text" json:"tags"`
	AuthorSnapshot
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UpVotes     int64  `gorm:"->;-:migration" json:"up_votes"`
	DownVotes   int64  `gorm:"->;-:migration" json:"down_votes"`
	ReplyCount  int64  `gorm:"->;-:migration" json:"reply_count"`
	MyVote      int    `gorm:"->;-:migration" json:"my_vote"`
	ContentHTML string `gorm:"-" json:"content_html"`
}

// TableName specifies the table name for GORM.
func (Zepchat) TableName() string {
	return "zepchats"
}

// ZepReply is a reply to a Zepchat.
type ZepReply struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ZepchatID uint   `gorm:"not null;index" json:"zepchat_id"`
	Content   string `gorm:"type:text;not null" json:"content"`
	AuthorSnapshot
	CreatedAt time.Time `json:"created_at"`

	UpVotes     int64  `gorm:"->;-:migration" json:"up_votes"`
	DownVotes   int64  `gorm:"->;-:migration" json:"down_votes"`
	MyVote      int    `gorm:"->;-:migration" json:"my_vote"`
	ContentHTML string `gorm:"-" json:"content_html"`
}

// TableName specifies the table name for GORM.
func (ZepReply) TableName() string {
	return "zep_replies"
}

// VoteTarget identifies which entity a vote belongs to.
type VoteTarget string

const (
	VoteTargetZepchat VoteTarget = "zepchat"
	VoteTargetReply   VoteTarget = "reply"
)

// VoteType is the operation requested by a voter.
type VoteType string

const (
	VoteUp         VoteType = "upVote"
	VoteDown       VoteType = "downVote"
	VoteRemoveUp   VoteType = "removeUpVote"
	VoteRemoveDown VoteType = "removeDownVote"
)

// Vote is the current vote of one user on one target. Value is +1 or -1;
// the absence of a row means no vote.
type Vote struct {
	TargetType VoteTarget `gorm:"type:varchar(10);primaryKey" json:"target_type"`
	TargetID   uint       `gorm:"primaryKey;autoIncrement:false" json:"target_id"`
	UserID     uint       `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Value      int        `gorm:"not null" json:"value"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Vote) TableName() string {
	return "votes"
}

// VoteTally is the derived vote state of a target.
type VoteTally struct {
	UpVoters   []uint `json:"up_voters"`
	DownVoters []uint `json:"down_voters"`
	UpVotes    int    `json:"up_votes"`
	DownVotes  int    `json:"down_votes"`
}
