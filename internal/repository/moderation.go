package repository

import (
	"context"

	"zephyr/internal/models"

	"gorm.io/gorm"
)

// ModerationRepository stores support tickets and user/community reports.
type ModerationRepository interface {
	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id uint) (*models.Ticket, error)
	ListTickets(ctx context.Context, userID uint) ([]models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, id uint, status models.TicketStatus) error
	AddTicketReply(ctx context.Context, reply *models.TicketReply) error

	CreateReport(ctx context.Context, r *models.Report) error
	ListReports(ctx context.Context) ([]models.Report, error)
	CreateCommunityReport(ctx context.Context, r *models.CommunityReport) error
	ListCommunityReports(ctx context.Context) ([]models.CommunityReport, error)
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository creates a new moderation repository.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

const ticketUserNameSelect = `tickets.*, (SELECT u.display_name FROM users u WHERE u.id = tickets.user_id) AS user_name`

func (r *moderationRepository) CreateTicket(ctx context.Context, t *models.Ticket) error {
	if err := conn(ctx, r.db).Omit("Replies").Create(t).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *moderationRepository) GetTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	var t models.Ticket
	err := conn(ctx, r.db).Model(&models.Ticket{}).
		Select(ticketUserNameSelect).
		Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("tickets.id = ?", id).
		Take(&t).Error
	if err != nil {
		return nil, notFoundOr(err, "Ticket", id)
	}
	return &t, nil
}

// ListTickets returns tickets newest first. A zero userID lists every ticket.
func (r *moderationRepository) ListTickets(ctx context.Context, userID uint) ([]models.Ticket, error) {
	db := conn(ctx, r.db).Model(&models.Ticket{}).
		Select(ticketUserNameSelect).
		Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") })
	if userID != 0 {
		db = db.Where("tickets.user_id = ?", userID)
	}
	var out []models.Ticket
	if err := db.Order("tickets.created_at DESC, tickets.id DESC").Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *moderationRepository) UpdateTicketStatus(ctx context.Context, id uint, status models.TicketStatus) error {
	res := conn(ctx, r.db).Model(&models.Ticket{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Ticket", id)
	}
	return nil
}

func (r *moderationRepository) AddTicketReply(ctx context.Context, reply *models.TicketReply) error {
	if err := conn(ctx, r.db).Create(reply).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *moderationRepository) CreateReport(ctx context.Context, rep *models.Report) error {
	if err := conn(ctx, r.db).Omit("Reporter", "Reported").Create(rep).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *moderationRepository) ListReports(ctx context.Context) ([]models.Report, error) {
	var out []models.Report
	if err := conn(ctx, r.db).
		Preload("Reporter").Preload("Reported").
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *moderationRepository) CreateCommunityReport(ctx context.Context, rep *models.CommunityReport) error {
	if err := conn(ctx, r.db).Omit("Reporter", "Community").Create(rep).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *moderationRepository) ListCommunityReports(ctx context.Context) ([]models.CommunityReport, error) {
	var out []models.CommunityReport
	if err := conn(ctx, r.db).
		Preload("Reporter").Preload("Community").
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}
