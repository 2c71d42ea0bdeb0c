package server

import (
	"zephyr/internal/models"
	"zephyr/internal/service"
	"zephyr/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type emailRequest struct {
	Email string `json:"email"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CheckExist handles POST /api/auth/check-exist
func (s *Server) CheckExist(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	exists, err := s.identity.CheckExist(c.UserContext(), req.Email)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"exists": exists})
}

// Signup handles POST /api/auth/signup. The account is created by VerifyOTP.
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Email       string `json:"email"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := validation.ValidatePassword(req.Password); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	err := s.identity.Signup(c.UserContext(), service.SignupInput{
		Email:       req.Email,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "OTP sent to email"})
}

// ResendOTP handles POST /api/auth/resend-otp
func (s *Server) ResendOTP(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.identity.ResendOTP(c.UserContext(), req.Email); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "OTP resent"})
}

// VerifyOTP handles POST /api/auth/verify-otp
func (s *Server) VerifyOTP(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	session, err := s.identity.VerifyOTP(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.setSessionCookie(c, userCookie, session.Token)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": session.Token,
		"user":  session.User,
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	session, err := s.identity.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.setSessionCookie(c, userCookie, session.Token)
	return c.JSON(fiber.Map{
		"token": session.Token,
		"user":  session.User,
	})
}

// ForgotPassword handles POST /api/auth/forgot-password
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.identity.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "OTP sent to email"})
}

// ResetPassword handles POST /api/auth/reset-password
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	if err := s.identity.ResetPassword(c.UserContext(), req.Email, req.OTP, req.NewPassword); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.identity.Logout(c.UserContext(), currentClaims(c)); err != nil {
		return respondServiceError(c, err)
	}
	s.clearSessionCookie(c, userCookie)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// AdminLogin handles POST /api/admin/login
func (s *Server) AdminLogin(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	session, err := s.identity.AdminLogin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.setSessionCookie(c, adminCookie, session.Token)
	return c.JSON(fiber.Map{
		"token": session.Token,
		"user":  session.User,
	})
}

// AdminLogout handles POST /api/admin/logout
func (s *Server) AdminLogout(c *fiber.Ctx) error {
	if err := s.identity.Logout(c.UserContext(), currentClaims(c)); err != nil {
		return respondServiceError(c, err)
	}
	s.clearSessionCookie(c, adminCookie)
	return c.JSON(fiber.Map{"message": "Logged out"})
}
