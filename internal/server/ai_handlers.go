package server

import "github.com/gofiber/fiber/v2"

// AIChat handles POST /api/ai/chat
func (s *Server) AIChat(c *fiber.Ctx) error {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	reply, err := s.ai.Chat(c.UserContext(), currentUserID(c), req.Prompt)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"reply": reply})
}
