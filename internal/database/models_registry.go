package database

import (
	"zephyr/internal/models"

	"gorm.io/gorm"
)

// PersistentModels lists every gorm model with a table, in dependency order.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.PendingSignup{},
		&models.Friendship{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.Community{},
		&models.CommunityMember{},
		&models.CommunityMessage{},
		&models.Zepchat{},
		&models.ZepReply{},
		&models.Vote{},
		&models.Notification{},
		&models.Ticket{},
		&models.TicketReply{},
		&models.Report{},
		&models.CommunityReport{},
	}
}

// AutoMigrate creates or updates every persistent table. Tests use it against SQLite.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}
