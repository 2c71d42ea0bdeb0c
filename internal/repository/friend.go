package repository

import (
	"context"
	"errors"
	"time"

	"zephyr/internal/models"

	"gorm.io/gorm"
)

// FriendRepository defines the interface for friend graph operations.
type FriendRepository interface {
	Create(ctx context.Context, friendship *models.Friendship) error
	GetBetween(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error)
	Accept(ctx context.Context, requesterID, addresseeID uint) (bool, error)
	DeleteBetween(ctx context.Context, userID1, userID2 uint) (int64, error)
	ListFriends(ctx context.Context, userID uint) ([]models.FriendEntry, error)
	ListIncoming(ctx context.Context, userID uint) ([]models.Friendship, error)
	ListOutgoing(ctx context.Context, userID uint) ([]models.Friendship, error)
	ConnectedUserIDs(ctx context.Context, userID uint) ([]uint, error)
	FriendIDs(ctx context.Context, userID uint) ([]uint, error)
}

type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

// Create inserts a new edge. The unique pair_key index turns a racing request in
// either direction into ALREADY_REQUESTED_OR_FRIENDS.
func (r *friendRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	friendship.PairKey = models.PairKey(friendship.RequesterID, friendship.AddresseeID)
	if err := conn(ctx, r.db).Create(friendship).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewAppError(models.CodeAlreadyRequestedOrFriends, "Friend request already sent or already friends")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// GetBetween returns the edge between two users in either direction, or (nil, nil).
func (r *friendRepository) GetBetween(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error) {
	var friendship models.Friendship
	if err := conn(ctx, r.db).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
			userID1, userID2, userID2, userID1).
		Order("id ASC").
		First(&friendship).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &friendship, nil
}

// Accept promotes the pending requester -> addressee edge. It reports false when no
// pending edge in that direction exists, so a concurrent second accept is a no-op.
func (r *friendRepository) Accept(ctx context.Context, requesterID, addresseeID uint) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Friendship{}).
		Where("requester_id = ? AND addressee_id = ? AND status = ?",
			requesterID, addresseeID, models.FriendshipStatusPending).
		Updates(map[string]any{
			"status":     models.FriendshipStatusAccepted,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteBetween removes every edge between two users regardless of direction or status.
func (r *friendRepository) DeleteBetween(ctx context.Context, userID1, userID2 uint) (int64, error) {
	res := conn(ctx, r.db).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
			userID1, userID2, userID2, userID1).
		Delete(&models.Friendship{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// ListFriends returns the other endpoint of every accepted edge touching userID.
func (r *friendRepository) ListFriends(ctx context.Context, userID uint) ([]models.FriendEntry, error) {
	var edges []models.Friendship
	if err := conn(ctx, r.db).
		Preload("Requester").
		Preload("Addressee").
		Where("status = ? AND (requester_id = ? OR addressee_id = ?)",
			models.FriendshipStatusAccepted, userID, userID).
		Order("updated_at DESC, id DESC").
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	out := make([]models.FriendEntry, 0, len(edges))
	for i := range edges {
		e := &edges[i]
		other := e.Requester
		if e.RequesterID == userID {
			other = e.Addressee
		}
		if other == nil {
			continue
		}
		out = append(out, models.FriendEntry{
			Friend:    other.Summary(),
			Status:    e.Status,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}

// ListIncoming returns pending requests addressed to userID.
func (r *friendRepository) ListIncoming(ctx context.Context, userID uint) ([]models.Friendship, error) {
	var edges []models.Friendship
	if err := conn(ctx, r.db).
		Preload("Requester").
		Where("addressee_id = ? AND status = ?", userID, models.FriendshipStatusPending).
		Order("created_at DESC").
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return edges, nil
}

// ListOutgoing returns pending requests sent by userID.
func (r *friendRepository) ListOutgoing(ctx context.Context, userID uint) ([]models.Friendship, error) {
	var edges []models.Friendship
	if err := conn(ctx, r.db).
		Preload("Addressee").
		Where("requester_id = ? AND status = ?", userID, models.FriendshipStatusPending).
		Order("created_at DESC").
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return edges, nil
}

// ConnectedUserIDs returns everyone sharing any edge with userID, pending or accepted.
func (r *friendRepository) ConnectedUserIDs(ctx context.Context, userID uint) ([]uint, error) {
	return r.otherEndpoints(ctx, userID, "")
}

// FriendIDs returns the ids of accepted friends only.
func (r *friendRepository) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	return r.otherEndpoints(ctx, userID, models.FriendshipStatusAccepted)
}

func (r *friendRepository) otherEndpoints(ctx context.Context, userID uint, status models.FriendshipStatus) ([]uint, error) {
	db := conn(ctx, r.db).Model(&models.Friendship{}).
		Where("(requester_id = ? OR addressee_id = ?)", userID, userID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	var edges []models.Friendship
	if err := db.Select("requester_id", "addressee_id").Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	ids := make([]uint, 0, len(edges))
	for i := range edges {
		ids = append(ids, edges[i].Other(userID))
	}
	return ids, nil
}
