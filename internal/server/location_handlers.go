package server

import (
	"strconv"

	"zephyr/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SetLocation handles POST /api/location
func (s *Server) SetLocation(c *fiber.Ctx) error {
	var req struct {
		Longitude *float64 `json:"longitude"`
		Latitude  *float64 `json:"latitude"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Longitude == nil || req.Latitude == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("longitude and latitude are required"))
	}

	if err := s.location.SetUserLocation(c.UserContext(), currentUserID(c), *req.Longitude, *req.Latitude); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Location updated"})
}

// FindNearbyFriends handles GET /api/location/nearby?radius_km=
func (s *Server) FindNearbyFriends(c *fiber.Ctx) error {
	var radius float64
	if raw := c.Query("radius_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("radius_km must be a positive number"))
		}
		radius = v
	}

	users, err := s.location.FindNearbyFriends(c.UserContext(), currentUserID(c), radius)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}
