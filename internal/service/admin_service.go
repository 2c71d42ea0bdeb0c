package service

import (
	"context"
	"log/slog"
	"strings"

	"zephyr/internal/events"
	"zephyr/internal/middleware"
	"zephyr/internal/models"
	"zephyr/internal/repository"
)

const (
	adminDefaultPageSize = 20
	adminMaxPageSize     = 100
)

// UserPage is one page of the admin user list.
type UserPage struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// AdminService backs the moderation console.
type AdminService struct {
	users       repository.UserRepository
	communities repository.CommunityRepository
	moderation  repository.ModerationRepository
	tx          repository.Transactor
	events      EventPublisher
}

func NewAdminService(
	users repository.UserRepository,
	communities repository.CommunityRepository,
	moderation repository.ModerationRepository,
	tx repository.Transactor,
	events EventPublisher,
) *AdminService {
	return &AdminService{users: users, communities: communities, moderation: moderation, tx: tx, events: events}
}

// ListUsers pages through all accounts. page starts at 1.
func (s *AdminService) ListUsers(ctx context.Context, page, limit int, search string) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = adminDefaultPageSize
	}
	if limit > adminMaxPageSize {
		limit = adminMaxPageSize
	}
	users, total, err := s.users.List(ctx, search, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Total: total, Page: page, Limit: limit}, nil
}

func (s *AdminService) GetUserInfo(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AdminService) ListCommunities(ctx context.Context, page, limit int) ([]models.Community, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = adminDefaultPageSize
	}
	return s.communities.ListAll(ctx, limit, (page-1)*limit)
}

func (s *AdminService) BlockUser(ctx context.Context, adminID, userID uint) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsAdmin {
		return models.NewForbiddenError("Admins cannot be blocked")
	}
	return s.setBlocked(ctx, adminID, userID, true)
}

func (s *AdminService) UnblockUser(ctx context.Context, adminID, userID uint) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.setBlocked(ctx, adminID, userID, false)
}

func (s *AdminService) setBlocked(ctx context.Context, adminID, userID uint, blocked bool) error {
	if err := s.users.SetBlocked(ctx, userID, blocked); err != nil {
		return err
	}
	typ := events.ModerationUnblock
	if blocked {
		typ = events.ModerationBlock
	}
	s.audit(ctx, typ, adminID, userID)
	return nil
}

func (s *AdminService) BanCommunity(ctx context.Context, adminID, communityID uint) error {
	return s.setBanned(ctx, adminID, communityID, true)
}

func (s *AdminService) UnbanCommunity(ctx context.Context, adminID, communityID uint) error {
	return s.setBanned(ctx, adminID, communityID, false)
}

func (s *AdminService) setBanned(ctx context.Context, adminID, communityID uint, banned bool) error {
	if err := s.communities.SetBanned(ctx, communityID, banned); err != nil {
		return err
	}
	typ := events.ModerationUnban
	if banned {
		typ = events.ModerationBan
	}
	s.audit(ctx, typ, adminID, communityID)
	return nil
}

func (s *AdminService) ListReports(ctx context.Context) ([]models.Report, error) {
	return s.moderation.ListReports(ctx)
}

func (s *AdminService) ListCommunityReports(ctx context.Context) ([]models.CommunityReport, error) {
	return s.moderation.ListCommunityReports(ctx)
}

// ListTickets returns every ticket with the raiser's name filled in.
func (s *AdminService) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	return s.moderation.ListTickets(ctx, 0)
}

// UpdateTicket sets the status and appends reply when it is not blank, atomically.
func (s *AdminService) UpdateTicket(ctx context.Context, adminID, ticketID uint, status models.TicketStatus, reply string) (*models.Ticket, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("Invalid ticket status")
	}
	reply = strings.TrimSpace(reply)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.moderation.UpdateTicketStatus(ctx, ticketID, status); err != nil {
			return err
		}
		if reply == "" {
			return nil
		}
		return s.moderation.AddTicketReply(ctx, &models.TicketReply{TicketID: ticketID, Body: reply})
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, events.ModerationTicket, adminID, ticketID)
	return s.moderation.GetTicket(ctx, ticketID)
}

func (s *AdminService) audit(ctx context.Context, typ string, adminID, subjectID uint) {
	middleware.Logger.InfoContext(ctx, "moderation action",
		slog.String("action", typ),
		slog.Uint64("admin_id", uint64(adminID)),
		slog.Uint64("subject_id", uint64(subjectID)),
	)
	emit(ctx, s.events, events.Event{Type: typ, ActorID: adminID, SubjectID: subjectID})
}
