package server

import (
	"strings"

	"zephyr/internal/models"
	"zephyr/internal/service"

	"github.com/gofiber/fiber/v2"
)

type voteRequest struct {
	VoteType models.VoteType `json:"voteType"`
}

// CreateZepchat handles POST /api/zepchats
func (s *Server) CreateZepchat(c *fiber.Ctx) error {
	var req service.ZepchatInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	z, err := s.zepchats.Create(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(z)
}

// ListZepchats handles GET /api/zepchats?search=&limit=&offset=
func (s *Server) ListZepchats(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	list, err := s.zepchats.List(c.UserContext(), currentUserID(c), strings.TrimSpace(c.Query("search")), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(list)
}

// GetMyZepchats handles GET /api/zepchats/mine
func (s *Server) GetMyZepchats(c *fiber.Ctx) error {
	list, err := s.zepchats.GetMine(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(list)
}

// GetZepchat handles GET /api/zepchats/:id
func (s *Server) GetZepchat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	z, err := s.zepchats.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(z)
}

// UpdateZepchat handles PUT /api/zepchats/:id
func (s *Server) UpdateZepchat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.ZepchatUpdate
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	z, err := s.zepchats.Update(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(z)
}

// DeleteZepchat handles DELETE /api/zepchats/:id
func (s *Server) DeleteZepchat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.zepchats.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Zepchat deleted"})
}

// VoteZepchat handles POST /api/zepchats/:id/vote
func (s *Server) VoteZepchat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req voteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	tally, err := s.zepchats.VoteZepchat(c.UserContext(), currentUserID(c), id, req.VoteType)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tally)
}

// PostReply handles POST /api/zepchats/:id/replies
func (s *Server) PostReply(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	reply, err := s.zepchats.PostReply(c.UserContext(), currentUserID(c), id, req.Content)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}

// GetReplies handles GET /api/zepchats/:id/replies
func (s *Server) GetReplies(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	replies, err := s.zepchats.GetReplies(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(replies)
}

// VoteReply handles POST /api/zepchats/replies/:replyId/vote
func (s *Server) VoteReply(c *fiber.Ctx) error {
	replyID, err := s.parseID(c, "replyId")
	if err != nil {
		return nil
	}
	var req voteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	tally, err := s.zepchats.VoteReply(c.UserContext(), currentUserID(c), replyID, req.VoteType)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tally)
}
