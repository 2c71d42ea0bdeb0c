package models

import (
	"time"
)

// FriendshipStatus represents the status of a friendship edge.
type FriendshipStatus string

const (
	// FriendshipStatusPending is a directed request from requester to addressee.
	FriendshipStatusPending FriendshipStatus = "pending"
	// FriendshipStatusAccepted is a confirmed friendship; direction no longer matters.
	FriendshipStatusAccepted FriendshipStatus = "accepted"
)

// Friendship is the edge between two users. A pending edge is directed
// requester -> addressee; an accepted edge is read from both sides.
type Friendship struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RequesterID uint             `gorm:"not null;uniqueIndex:idx_friendship_users" json:"requester_id"`
	AddresseeID uint             `gorm:"not null;uniqueIndex:idx_friendship_users;index" json:"addressee_id"`
	// PairKey is the unordered "low:high" pair; its unique index allows one edge per pair.
	PairKey     string           `gorm:"size:64;not null;uniqueIndex:idx_friendships_pair_key" json:"-"`
	Status      FriendshipStatus `gorm:"type:varchar(20);default:'pending';index:idx_friendships_status" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	Requester *User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Addressee *User `gorm:"foreignKey:AddresseeID" json:"addressee,omitempty"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}

// Other returns the endpoint of the edge that is not userID.
func (f *Friendship) Other(userID uint) uint {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// FriendEntry is one row of a user's friend list.
type FriendEntry struct {
	Friend    UserSummary      `json:"friend"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}
