package service

import (
	"context"
	"strings"

	"zephyr/internal/models"
	"zephyr/internal/repository"
)

// TicketInput is a support request raised by a user.
type TicketInput struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// ReportService files user and community reports and support tickets.
type ReportService struct {
	moderation  repository.ModerationRepository
	users       repository.UserRepository
	communities repository.CommunityRepository
}

func NewReportService(moderation repository.ModerationRepository, users repository.UserRepository, communities repository.CommunityRepository) *ReportService {
	return &ReportService{moderation: moderation, users: users, communities: communities}
}

// ReportUser files a report by reporterID against reportedID.
func (s *ReportService) ReportUser(ctx context.Context, reporterID, reportedID uint, reason string) (*models.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("Reason is required")
	}
	if reporterID == reportedID {
		return nil, models.NewValidationError("You cannot report yourself")
	}
	if _, err := s.users.GetByID(ctx, reportedID); err != nil {
		return nil, err
	}
	r := &models.Report{ReporterID: reporterID, ReportedID: reportedID, Reason: reason}
	if err := s.moderation.CreateReport(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ReportService) ReportCommunity(ctx context.Context, reporterID, communityID uint, reason string) (*models.CommunityReport, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("Reason is required")
	}
	if _, err := s.communities.GetByID(ctx, communityID); err != nil {
		return nil, err
	}
	r := &models.CommunityReport{ReporterID: reporterID, CommunityID: communityID, Reason: reason}
	if err := s.moderation.CreateCommunityReport(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateTicket opens a ticket in the Open state.
func (s *ReportService) CreateTicket(ctx context.Context, userID uint, in TicketInput) (*models.Ticket, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	if in.Subject == "" {
		return nil, models.NewValidationError("Subject is required")
	}
	if len(in.Subject) > 200 {
		return nil, models.NewValidationError("Subject must not exceed 200 characters")
	}
	t := &models.Ticket{
		UserID:      userID,
		Subject:     in.Subject,
		Description: strings.TrimSpace(in.Description),
		Status:      models.TicketOpen,
	}
	if err := s.moderation.CreateTicket(ctx, t); err != nil {
		return nil, err
	}
	t.Replies = []models.TicketReply{}
	return t, nil
}

func (s *ReportService) GetMyTickets(ctx context.Context, userID uint) ([]models.Ticket, error) {
	return s.moderation.ListTickets(ctx, userID)
}
