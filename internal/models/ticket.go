package models

import "time"

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "Open"
	TicketInProgress TicketStatus = "In Progress"
	TicketResolved   TicketStatus = "Resolved"
	TicketClosed     TicketStatus = "Closed"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

// Ticket is a support request raised by a user.
type Ticket struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	UserID      uint          `gorm:"not null;index" json:"user_id"`
	Subject     string        `gorm:"size:200;not null" json:"subject"`
	Description string        `gorm:"type:text" json:"description"`
	Status      TicketStatus  `gorm:"type:varchar(20);not null;default:'Open'" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Replies     []TicketReply `gorm:"foreignKey:TicketID" json:"admin_replies"`

	UserName string `gorm:"->;-:migration" json:"user_name,omitempty"`
}

// TableName specifies the table name for GORM.
func (Ticket) TableName() string {
	return "tickets"
}

// TicketReply is one admin reply appended to a ticket.
type TicketReply struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TicketID  uint      `gorm:"not null;index" json:"ticket_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (TicketReply) TableName() string {
	return "ticket_replies"
}

// Report is a user-against-user report.
type Report struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReporterID uint      `gorm:"not null;index" json:"reporter_id"`
	ReportedID uint      `gorm:"not null;index" json:"reported_id"`
	Reason     string    `gorm:"type:text;not null" json:"reason"`
	CreatedAt  time.Time `json:"created_at"`

	Reporter *User `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	Reported *User `gorm:"foreignKey:ReportedID" json:"reported,omitempty"`
}

// TableName specifies the table name for GORM.
func (Report) TableName() string {
	return "reports"
}

// CommunityReport is a user-against-community report.
type CommunityReport struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ReporterID  uint      `gorm:"not null;index" json:"reporter_id"`
	CommunityID uint      `gorm:"not null;index" json:"community_id"`
	Reason      string    `gorm:"type:text;not null" json:"reason"`
	CreatedAt   time.Time `json:"created_at"`

	Reporter  *User      `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	Community *Community `gorm:"foreignKey:CommunityID" json:"community,omitempty"`
}

// TableName specifies the table name for GORM.
func (CommunityReport) TableName() string {
	return "community_reports"
}
