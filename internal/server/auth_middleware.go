package server

import (
	"strings"

	"zephyr/internal/credentials"
	"zephyr/internal/middleware"
	"zephyr/internal/models"

	"github.com/gofiber/fiber/v2"
)

// sessionToken reads the token from the named cookie, falling back to a Bearer header.
func sessionToken(c *fiber.Ctx, cookie string) string {
	if token := c.Cookies(cookie); token != "" {
		return token
	}
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// authenticate validates the session in cookie and loads its user.
// On failure the response is written and errResponseWritten returned.
func (s *Server) authenticate(c *fiber.Ctx, cookie string, role credentials.Role) (*models.User, error) {
	raw := sessionToken(c, cookie)
	if raw == "" {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
		return nil, errResponseWritten
	}

	claims, err := s.tokens.Parse(raw)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired token"))
		return nil, errResponseWritten
	}
	if claims.Role != role {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid token role"))
		return nil, errResponseWritten
	}
	if s.blacklist.IsRevoked(c.UserContext(), claims.ID) {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Token has been revoked"))
		return nil, errResponseWritten
	}

	userID, err := claims.UserID()
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid user ID in token"))
		return nil, errResponseWritten
	}

	user, err := s.userRepo.GetByID(c.UserContext(), userID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			_ = models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("User no longer exists"))
			return nil, errResponseWritten
		}
		_ = respondServiceError(c, err)
		return nil, errResponseWritten
	}

	c.Locals("userID", userID)
	c.Locals("claims", claims)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
	return user, nil
}

// AuthRequired accepts a user session from the jwt cookie.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.authenticate(c, userCookie, credentials.RoleUser)
		if err != nil {
			return nil
		}
		if user.IsBlocked {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("You are blocked by admin"))
		}
		return c.Next()
	}
}

// AdminRequired accepts an admin session from the adminJwt cookie and re-checks
// the admin flag, so demoted accounts lose access immediately.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.authenticate(c, adminCookie, credentials.RoleAdmin)
		if err != nil {
			return nil
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}
