package server

import "github.com/gofiber/fiber/v2"

// GetNotifications handles GET /api/notifications
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	list, err := s.notifications.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(list)
}

// ClearNotifications handles DELETE /api/notifications
func (s *Server) ClearNotifications(c *fiber.Ctx) error {
	if err := s.notifications.ClearAll(c.UserContext(), currentUserID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Notifications cleared"})
}
