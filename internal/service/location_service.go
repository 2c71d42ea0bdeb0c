package service

import (
	"context"

	"zephyr/internal/geo"
	"zephyr/internal/models"
	"zephyr/internal/repository"
)

const (
	defaultNearbyRadiusKm = 50
	maxNearbyRadiusKm     = 20000
	nearbyLimit           = 50
)

// LocationService records user positions and suggests nearby players.
type LocationService struct {
	index   LocationIndex
	users   repository.UserRepository
	friends repository.FriendRepository
}

// NewLocationService returns a LocationService. A nil index makes every call fail with SERVICE_UNAVAILABLE.
func NewLocationService(index LocationIndex, users repository.UserRepository, friends repository.FriendRepository) *LocationService {
	return &LocationService{index: index, users: users, friends: friends}
}

func (s *LocationService) SetUserLocation(ctx context.Context, userID uint, lng, lat float64) error {
	if s.index == nil {
		return models.NewUnavailableError("Location service not configured", nil)
	}
	if !geo.ValidCoordinates(lng, lat) {
		return models.NewValidationError("Longitude must be within [-180, 180] and latitude within [-90, 90]")
	}
	if err := s.index.Upsert(ctx, userID, lng, lat); err != nil {
		return models.NewUnavailableError("Could not store location", err)
	}
	return nil
}

// FindNearbyFriends returns users within radiusKm of userID's stored location who
// have no friendship edge with userID, nearest first. radiusKm <= 0 means the default.
func (s *LocationService) FindNearbyFriends(ctx context.Context, userID uint, radiusKm float64) ([]models.UserSummary, error) {
	if s.index == nil {
		return nil, models.NewUnavailableError("Location service not configured", nil)
	}
	if radiusKm <= 0 {
		radiusKm = defaultNearbyRadiusKm
	}
	if radiusKm > maxNearbyRadiusKm {
		radiusKm = maxNearbyRadiusKm
	}

	loc, err := s.index.Get(ctx, userID)
	if err != nil {
		return nil, models.NewUnavailableError("Could not read location", err)
	}
	if loc == nil || len(loc.Location.Coordinates) < 2 {
		return nil, models.NewValidationError("Share your location first")
	}

	connected, err := s.friends.ConnectedUserIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	exclude := append(connected, userID)
	lng, lat := loc.Location.Coordinates[0], loc.Location.Coordinates[1]
	ids, err := s.index.Nearby(ctx, lng, lat, radiusKm*1000, exclude, nearbyLimit)
	if err != nil {
		return nil, models.NewUnavailableError("Nearby search failed", err)
	}
	if len(ids) == 0 {
		return []models.UserSummary{}, nil
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok || u.IsBlocked || u.IsAdmin {
			continue
		}
		out = append(out, u.Summary())
	}
	return out, nil
}
