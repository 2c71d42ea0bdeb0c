// Package models contains data structures for the application's domain models.
package models

import "time"

// UserStatus is the presence status a user shows to friends.
type UserStatus string

const (
	UserStatusOnline       UserStatus = "Online"
	UserStatusIdle         UserStatus = "Idle"
	UserStatusDoNotDisturb UserStatus = "DoNotDisturb"
)

// Valid reports whether s is one of the known presence values.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusOnline, UserStatusIdle, UserStatusDoNotDisturb:
		return true
	}
	return false
}

// User is the identity record for a Zephyr account.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Username       string     `gorm:"size:30;uniqueIndex;not null" json:"username"`
	DisplayName    string     `gorm:"size:60;not null" json:"display_name"`
	Email          string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password       string     `gorm:"not null" json:"-"`
	Wallet         int64      `gorm:"not null;default:0" json:"wallet"`
	Status         UserStatus `gorm:"type:varchar(20);not null;default:'Online'" json:"status"`
	ProfilePicture string     `json:"profile_picture"`
	IsPremium      bool       `gorm:"not null;default:false" json:"is_premium"`
	IsBlocked      bool       `gorm:"not null;default:false;index" json:"is_blocked"`
	IsAdmin        bool       `gorm:"not null;default:false" json:"is_admin"`
	JoinedAt       time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// UserSummary is the public projection of a user used in lists and snapshots.
type UserSummary struct {
	ID             uint       `json:"id"`
	Username       string     `json:"username"`
	DisplayName    string     `json:"display_name"`
	ProfilePicture string     `json:"profile_picture"`
	Status         UserStatus `json:"status,omitempty"`
}

// Summary returns the public projection of u.
func (u *User) Summary() UserSummary {
	if u == nil {
		return UserSummary{}
	}
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		ProfilePicture: u.ProfilePicture,
		Status:         u.Status,
	}
}
