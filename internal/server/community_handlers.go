package server

import (
	"encoding/json"
	"strings"

	"zephyr/internal/models"
	"zephyr/internal/service"

	"github.com/gofiber/fiber/v2"
)

// decodeCommunityForm reads a community payload either as JSON or as a multipart
// form whose "data" field holds the JSON and whose "picture" field holds the image.
func decodeCommunityForm(c *fiber.Ctx, dst any) ([]byte, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, parseBody(c, dst)
	}
	if err := json.Unmarshal([]byte(c.FormValue("data")), dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return nil, errResponseWritten
	}
	return readUpload(c, "picture", true)
}

// CreateCommunity handles POST /api/communities
func (s *Server) CreateCommunity(c *fiber.Ctx) error {
	var req service.CommunityInput
	picture, err := decodeCommunityForm(c, &req)
	if err != nil {
		return nil
	}

	community, err := s.communities.Create(c.UserContext(), currentUserID(c), req, picture)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(community)
}

// GetCommunities handles GET /api/communities?search=
func (s *Server) GetCommunities(c *fiber.Ctx) error {
	list, err := s.communities.GetCommunities(c.UserContext(), currentUserID(c), strings.TrimSpace(c.Query("search")))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(list)
}

// GetMyCommunities handles GET /api/communities/mine
func (s *Server) GetMyCommunities(c *fiber.Ctx) error {
	list, err := s.communities.GetMyCommunities(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(list)
}

// GetCommunity handles GET /api/communities/:id
func (s *Server) GetCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	community, err := s.communities.GetCommunityByID(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(community)
}

// JoinCommunity handles POST /api/communities/:id/join
func (s *Server) JoinCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.communities.Join(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Joined community"})
}

// LeaveCommunity handles POST /api/communities/:id/leave
func (s *Server) LeaveCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.communities.Leave(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Left community"})
}

// GetCommunityMembers handles GET /api/communities/:id/members
func (s *Server) GetCommunityMembers(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	view, err := s.communities.GetCommunityMembers(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// AddCommunityMembers handles POST /api/communities/:id/members
func (s *Server) AddCommunityMembers(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		MemberIDs []uint `json:"member_ids"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	added, err := s.communities.AddMembers(c.UserContext(), currentUserID(c), id, req.MemberIDs)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"added": added})
}

// RemoveCommunityMember handles DELETE /api/communities/:id/members/:userId
func (s *Server) RemoveCommunityMember(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.communities.RemoveMember(c.UserContext(), currentUserID(c), id, targetID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Member removed"})
}

// MakeCommunityAdmin handles POST /api/communities/:id/admin/:userId
func (s *Server) MakeCommunityAdmin(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.communities.MakeAdmin(c.UserContext(), currentUserID(c), targetID, id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Admin transferred"})
}

// UpdateCommunity handles PUT /api/communities/:id
func (s *Server) UpdateCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.CommunityUpdate
	picture, err := decodeCommunityForm(c, &req)
	if err != nil {
		return nil
	}

	community, err := s.communities.UpdateCommunity(c.UserContext(), currentUserID(c), id, req, picture)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(community)
}

// SendCommunityMessage handles POST /api/communities/:id/messages
func (s *Server) SendCommunityMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.MessageInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.communities.SendMessage(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// GetCommunityMessages handles GET /api/communities/:id/messages?limit=&before=
func (s *Server) GetCommunityMessages(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	before := c.QueryInt("before", 0)
	if before < 0 {
		before = 0
	}

	msgs, err := s.communities.GetMessages(c.UserContext(), currentUserID(c), id, page.Limit, uint(before))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(msgs)
}

// ReportCommunity handles POST /api/communities/:id/report
func (s *Server) ReportCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	report, err := s.reports.ReportCommunity(c.UserContext(), currentUserID(c), id, req.Reason)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}
