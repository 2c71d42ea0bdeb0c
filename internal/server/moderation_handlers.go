package server

import (
	"strings"

	"zephyr/internal/models"
	"zephyr/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxAdminUserSearchLen = 64

// AdminGetUsers handles GET /api/admin/users?page=&limit=&search=
func (s *Server) AdminGetUsers(c *fiber.Ctx) error {
	search := strings.TrimSpace(c.Query("search"))
	if len(search) > maxAdminUserSearchLen {
		search = search[:maxAdminUserSearchLen]
	}

	page, err := s.admin.ListUsers(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("limit", 0), search)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// AdminGetUserInfo handles GET /api/admin/users/:id
func (s *Server) AdminGetUserInfo(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.admin.GetUserInfo(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// AdminBlockUser handles PATCH /api/admin/users/:id/block
func (s *Server) AdminBlockUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.admin.BlockUser(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User blocked"})
}

// AdminUnblockUser handles PATCH /api/admin/users/:id/unblock
func (s *Server) AdminUnblockUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.admin.UnblockUser(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User unblocked"})
}

// AdminGetCommunities handles GET /api/admin/communities?page=&limit=
func (s *Server) AdminGetCommunities(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 0)

	list, total, err := s.admin.ListCommunities(c.UserContext(), page, limit)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"communities": list, "total": total, "page": page})
}

// AdminBanCommunity handles PATCH /api/admin/communities/:id/ban
func (s *Server) AdminBanCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.admin.BanCommunity(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Community banned"})
}

// AdminUnbanCommunity handles PATCH /api/admin/communities/:id/unban
func (s *Server) AdminUnbanCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.admin.UnbanCommunity(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Community unbanned"})
}

// AdminGetReports handles GET /api/admin/reports
func (s *Server) AdminGetReports(c *fiber.Ctx) error {
	reports, err := s.admin.ListReports(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(reports)
}

// AdminGetCommunityReports handles GET /api/admin/community-reports
func (s *Server) AdminGetCommunityReports(c *fiber.Ctx) error {
	reports, err := s.admin.ListCommunityReports(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(reports)
}

// AdminGetTickets handles GET /api/admin/tickets
func (s *Server) AdminGetTickets(c *fiber.Ctx) error {
	tickets, err := s.admin.ListTickets(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tickets)
}

// AdminUpdateTicket handles PATCH /api/admin/tickets/:id
func (s *Server) AdminUpdateTicket(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Status models.TicketStatus `json:"status"`
		Reply  string              `json:"reply"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	ticket, err := s.admin.UpdateTicket(c.UserContext(), currentUserID(c), id, req.Status, req.Reply)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(ticket)
}

// ReportUser handles POST /api/reports/users/:userId
func (s *Server) ReportUser(c *fiber.Ctx) error {
	reportedID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	report, err := s.reports.ReportUser(c.UserContext(), currentUserID(c), reportedID, req.Reason)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// CreateTicket handles POST /api/tickets
func (s *Server) CreateTicket(c *fiber.Ctx) error {
	var req service.TicketInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	ticket, err := s.reports.CreateTicket(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ticket)
}

// GetMyTickets handles GET /api/tickets/me
func (s *Server) GetMyTickets(c *fiber.Ctx) error {
	tickets, err := s.reports.GetMyTickets(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tickets)
}
