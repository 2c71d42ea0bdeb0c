package server

import (
	"zephyr/internal/featureflags"
	"zephyr/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	featureAIChat        = featureflags.AIChat
	featureNearbyFriends = featureflags.NearbyFriends
)

// RequireFeature hides a route behind a flag: callers outside the rollout get 404.
// Mount it after AuthRequired so partial rollouts see the user id.
func (s *Server) RequireFeature(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(name, currentUserID(c)) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewAppError(models.CodeNotFound, "Feature not available"))
		}
		return c.Next()
	}
}

type featureFlagsResponse struct {
	Configured map[string]string `json:"raw"`
	Evaluated  map[string]bool   `json:"evaluated"`
}

// GetFeatureFlags shows the configured flag values and what they evaluate to for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	resp := featureFlagsResponse{Configured: map[string]string{}, Evaluated: map[string]bool{}}
	if s.featureFlags != nil {
		resp.Configured = s.featureFlags.Raw()
		resp.Evaluated = s.featureFlags.Snapshot(currentUserID(c))
	}
	return c.JSON(resp)
}
