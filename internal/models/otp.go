package models

import "time"

// OTPPurpose distinguishes signup verification from password recovery.
type OTPPurpose string

const (
	OTPPurposeSignup OTPPurpose = "signup"
	OTPPurposeReset  OTPPurpose = "reset"
)

// PendingSignup stores the hashed OTP for an email together with the
// account fields captured at signup. Rows are deleted on success or expiry.
type PendingSignup struct {
	Email        string     `gorm:"primaryKey;size:254" json:"email"`
	Purpose      OTPPurpose `gorm:"type:varchar(10);not null;default:'signup'" json:"purpose"`
	OTPHash      string     `gorm:"not null" json:"-"`
	GeneratedAt  time.Time  `gorm:"not null" json:"generated_at"`
	Username     string     `gorm:"size:30" json:"username"`
	DisplayName  string     `gorm:"size:60" json:"display_name"`
	PasswordHash string     `json:"-"`
}

// TableName specifies the table name for GORM.
func (PendingSignup) TableName() string {
	return "pending_signups"
}
