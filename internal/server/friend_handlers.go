package server

import (
	"strings"

	"zephyr/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFriends handles GET /api/friends
func (s *Server) GetFriends(c *fiber.Ctx) error {
	friends, err := s.friends.GetFriends(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(friends)
}

// GetGlobalFriends handles GET /api/friends/global?search=
func (s *Server) GetGlobalFriends(c *fiber.Ctx) error {
	users, err := s.friends.GetGlobalFriends(c.UserContext(), currentUserID(c), strings.TrimSpace(c.Query("search")))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}

// GetFriendRequests handles GET /api/friends/requests
func (s *Server) GetFriendRequests(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	incoming, err := s.friends.IncomingRequests(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	outgoing, err := s.friends.OutgoingRequests(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"incoming": incoming, "outgoing": outgoing})
}

// GetFriendshipStatus handles GET /api/friends/status/:userId
func (s *Server) GetFriendshipStatus(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	status, err := s.friends.FriendshipStatus(c.UserContext(), currentUserID(c), otherID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"status": status})
}

// AddFriend handles POST /api/friends/:userId
func (s *Server) AddFriend(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	edge, err := s.friends.AddFriend(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(edge)
}

// AcceptFriend handles POST /api/friends/:userId/accept, where userId is the requester.
func (s *Server) AcceptFriend(c *fiber.Ctx) error {
	requesterID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	conv, err := s.friends.AcceptFriend(c.UserContext(), currentUserID(c), requesterID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Friend request accepted", "conversation": conv})
}

// RejectFriend handles POST /api/friends/:userId/reject
func (s *Server) RejectFriend(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.friends.RejectFriend(c.UserContext(), currentUserID(c), otherID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Friend request rejected"})
}

// RemoveFriend handles DELETE /api/friends/:userId
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.friends.RemoveFriend(c.UserContext(), currentUserID(c), otherID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Friend removed"})
}

// SendMessage handles POST /api/messages/:userId
func (s *Server) SendMessage(c *fiber.Ctx) error {
	receiverID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req service.MessageInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.chat.SendMessage(c.UserContext(), currentUserID(c), receiverID, req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// FetchMessages handles GET /api/messages/:userId?limit=&before=
func (s *Server) FetchMessages(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	before := c.QueryInt("before", 0)
	if before < 0 {
		before = 0
	}

	msgs, err := s.chat.FetchMessages(c.UserContext(), currentUserID(c), otherID, page.Limit, uint(before))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(msgs)
}

// UploadAttachment handles POST /api/messages/attachments (multipart field "file")
func (s *Server) UploadAttachment(c *fiber.Ctx) error {
	data, err := readUpload(c, "file", false)
	if err != nil {
		return nil
	}

	att, err := s.chat.UploadAttachment(c.UserContext(), currentUserID(c), data)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(att)
}
