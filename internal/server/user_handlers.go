package server

import (
	"strings"

	"zephyr/internal/models"
	"zephyr/internal/service"
	"zephyr/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetMe handles GET /api/users/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.identity.GetMe(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// UpdateProfile handles PUT /api/users/me
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		Username    *string `json:"username"`
		DisplayName *string `json:"display_name"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.identity.UpdateProfile(c.UserContext(), currentUserID(c), service.ProfileInput{
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// ChangePassword handles PUT /api/users/me/password
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	if err := s.identity.ChangePassword(c.UserContext(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}

// UpdateStatus handles PUT /api/users/me/status
func (s *Server) UpdateStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.UserStatus `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.identity.UpdateStatus(c.UserContext(), currentUserID(c), req.Status)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// UploadProfilePicture handles POST /api/users/me/picture (multipart field "picture")
func (s *Server) UploadProfilePicture(c *fiber.Ctx) error {
	data, err := readUpload(c, "picture", false)
	if err != nil {
		return nil
	}

	user, err := s.identity.UploadProfilePicture(c.UserContext(), currentUserID(c), data)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// ListUsers handles GET /api/users?search=
func (s *Server) ListUsers(c *fiber.Ctx) error {
	users, err := s.identity.ListUsers(c.UserContext(), strings.TrimSpace(c.Query("search")))
	if err != nil {
		return respondServiceError(c, err)
	}

	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return c.JSON(out)
}
