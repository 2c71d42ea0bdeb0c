package repository

import (
	"context"
	"errors"
	"time"

	"zephyr/internal/cache"
	"zephyr/internal/models"
	"zephyr/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommunityRepository persists communities, their membership and group messages.
type CommunityRepository interface {
	Create(ctx context.Context, community *models.Community) error
	GetByID(ctx context.Context, id uint) (*models.Community, error)
	Search(ctx context.Context, q CommunityQuery) ([]models.Community, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Community, int64, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Community, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	SetBanned(ctx context.Context, id uint, banned bool) error

	GetMember(ctx context.Context, communityID, userID uint) (*models.CommunityMember, error)
	GetAdmin(ctx context.Context, communityID uint) (*models.CommunityMember, error)
	ListMembers(ctx context.Context, communityID uint) ([]models.CommunityMember, error)
	AddMember(ctx context.Context, member *models.CommunityMember) (bool, error)
	RemoveMember(ctx context.Context, communityID, userID uint) (int64, error)
	FindSuccessor(ctx context.Context, communityID, leavingUserID uint) (*models.CommunityMember, error)
	SetRole(ctx context.Context, communityID, userID uint, role models.CommunityRole, joinedAt *time.Time) error
	CountMemberRows(ctx context.Context, communityID, userID uint) (int64, error)
	GetVersion(ctx context.Context, communityID uint) (uint, error)
	BumpVersion(ctx context.Context, communityID, expected uint) (bool, error)

	CreateMessage(ctx context.Context, msg *models.CommunityMessage) error
	ListMessages(ctx context.Context, communityID uint, limit int, beforeID uint) ([]models.CommunityMessage, error)
}

// CommunityQuery filters the community browser.
type CommunityQuery struct {
	Search          string
	ExcludeMemberID uint
	IncludeBanned   bool
	Limit           int
}

type communityRepository struct {
	db *gorm.DB
}

// NewCommunityRepository creates a new community repository.
func NewCommunityRepository(db *gorm.DB) CommunityRepository {
	return &communityRepository{db: db}
}

const memberCountSelect = `communities.*,
	(SELECT COUNT(*) FROM community_members cm WHERE cm.community_id = communities.id) AS member_count`

func (r *communityRepository) Create(ctx context.Context, community *models.Community) error {
	if err := conn(ctx, r.db).Create(community).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *communityRepository) GetByID(ctx context.Context, id uint) (*models.Community, error) {
	var c models.Community
	err := cache.Aside(ctx, cache.CommunityKey(id), &c, cache.CommunityTTL, func() error {
		if err := conn(ctx, r.db).Model(&models.Community{}).Select(memberCountSelect).
			Where("communities.id = ?", id).Take(&c).Error; err != nil {
			return notFoundOr(err, "Community", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Search lists communities the caller may join: not banned and not already joined.
func (r *communityRepository) Search(ctx context.Context, q CommunityQuery) ([]models.Community, error) {
	defer observability.TrackQuery("search", "communities")()
	db := conn(ctx, r.db).Model(&models.Community{}).Select(memberCountSelect)
	if !q.IncludeBanned {
		db = db.Where("communities.is_banned = ?", false)
	}
	if q.ExcludeMemberID != 0 {
		db = db.Where("NOT EXISTS (SELECT 1 FROM community_members x WHERE x.community_id = communities.id AND x.user_id = ?)", q.ExcludeMemberID)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		db = db.Where(`(LOWER(communities.name) LIKE ? ESCAPE '\' OR LOWER(communities.description) LIKE ? ESCAPE '\' OR LOWER(communities.hashtags) LIKE ? ESCAPE '\')`, p, p, p)
	}

	var out []models.Community
	if err := db.Order("communities.created_at DESC").Limit(clampLimit(q.Limit, 50, 100)).Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *communityRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Community, int64, error) {
	var total int64
	if err := conn(ctx, r.db).Model(&models.Community{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var out []models.Community
	if err := conn(ctx, r.db).Model(&models.Community{}).Select(memberCountSelect).
		Order("communities.created_at DESC").Limit(clampLimit(limit, 20, 100)).Offset(offset).
		Find(&out).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return out, total, nil
}

func (r *communityRepository) ListForUser(ctx context.Context, userID uint) ([]models.Community, error) {
	var out []models.Community
	if err := conn(ctx, r.db).Model(&models.Community{}).Select(memberCountSelect).
		Joins("JOIN community_members me ON me.community_id = communities.id AND me.user_id = ?", userID).
		Order("communities.updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *communityRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	res := conn(ctx, r.db).Model(&models.Community{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Community", id)
	}
	dropCachedCommunity(ctx, id)
	return nil
}

func (r *communityRepository) SetBanned(ctx context.Context, id uint, banned bool) error {
	return r.UpdateFields(ctx, id, map[string]any{"is_banned": banned})
}

// GetMember returns (nil, nil) when userID is not in the community.
func (r *communityRepository) GetMember(ctx context.Context, communityID, userID uint) (*models.CommunityMember, error) {
	var m models.CommunityMember
	if err := conn(ctx, r.db).Where("community_id = ? AND user_id = ?", communityID, userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &m, nil
}

func (r *communityRepository) GetAdmin(ctx context.Context, communityID uint) (*models.CommunityMember, error) {
	var m models.CommunityMember
	if err := conn(ctx, r.db).Preload("User").
		Where("community_id = ? AND role = ?", communityID, models.CommunityRoleAdmin).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &m, nil
}

// ListMembers returns every membership row in stable join order.
func (r *communityRepository) ListMembers(ctx context.Context, communityID uint) ([]models.CommunityMember, error) {
	var members []models.CommunityMember
	if err := conn(ctx, r.db).Preload("User").
		Where("community_id = ?", communityID).
		Order("joined_at ASC, user_id ASC").
		Find(&members).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

// AddMember inserts a membership row and reports whether it was new.
func (r *communityRepository) AddMember(ctx context.Context, member *models.CommunityMember) (bool, error) {
	res := conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(member)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return false, models.NewConflictError("Community already has an admin")
		}
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 1 {
		dropCachedCommunity(ctx, member.CommunityID)
	}
	return res.RowsAffected == 1, nil
}

func (r *communityRepository) RemoveMember(ctx context.Context, communityID, userID uint) (int64, error) {
	res := conn(ctx, r.db).Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&models.CommunityMember{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		dropCachedCommunity(ctx, communityID)
	}
	return res.RowsAffected, nil
}

// FindSuccessor returns the plain member who joined first (ties broken by user id),
// or (nil, nil) when the leaver is alone.
func (r *communityRepository) FindSuccessor(ctx context.Context, communityID, leavingUserID uint) (*models.CommunityMember, error) {
	defer observability.TrackQuery("successor", "community_members")()
	var m models.CommunityMember
	if err := conn(ctx, r.db).
		Where("community_id = ? AND role = ? AND user_id <> ?", communityID, models.CommunityRoleMember, leavingUserID).
		Order("joined_at ASC, user_id ASC").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &m, nil
}

// SetRole changes a member's role, optionally resetting joined_at.
func (r *communityRepository) SetRole(ctx context.Context, communityID, userID uint, role models.CommunityRole, joinedAt *time.Time) error {
	fields := map[string]any{"role": role}
	if joinedAt != nil {
		fields["joined_at"] = *joinedAt
	}
	res := conn(ctx, r.db).Model(&models.CommunityMember{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Community member", userID)
	}
	return nil
}

func (r *communityRepository) CountMemberRows(ctx context.Context, communityID, userID uint) (int64, error) {
	var n int64
	if err := conn(ctx, r.db).Model(&models.CommunityMember{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// GetVersion reads the current membership_version, bypassing the cache.
func (r *communityRepository) GetVersion(ctx context.Context, communityID uint) (uint, error) {
	var c models.Community
	if err := conn(ctx, r.db).Select("id", "membership_version").First(&c, communityID).Error; err != nil {
		return 0, notFoundOr(err, "Community", communityID)
	}
	return c.Version, nil
}

// BumpVersion increments membership_version only if it still equals expected.
// A false result means another writer changed the membership first.
func (r *communityRepository) BumpVersion(ctx context.Context, communityID, expected uint) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Community{}).
		Where("id = ? AND membership_version = ?", communityID, expected).
		Updates(map[string]any{
			"membership_version": gorm.Expr("membership_version + 1"),
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 1 {
		dropCachedCommunity(ctx, communityID)
	}
	return res.RowsAffected == 1, nil
}

func (r *communityRepository) CreateMessage(ctx context.Context, msg *models.CommunityMessage) error {
	if err := conn(ctx, r.db).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListMessages returns up to limit messages older than beforeID in chronological order.
func (r *communityRepository) ListMessages(ctx context.Context, communityID uint, limit int, beforeID uint) ([]models.CommunityMessage, error) {
	db := conn(ctx, r.db).Preload("Sender").Where("community_id = ?", communityID)
	if beforeID > 0 {
		db = db.Where("id < ?", beforeID)
	}
	var msgs []models.CommunityMessage
	if err := db.Order("created_at DESC, id DESC").Limit(clampLimit(limit, 50, 100)).Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func dropCachedCommunity(ctx context.Context, id uint) {
	afterCommit(ctx, func(ctx context.Context) { cache.InvalidateCommunity(ctx, id) })
}
