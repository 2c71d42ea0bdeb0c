package repository

import (
	"context"

	"zephyr/internal/models"
	"zephyr/internal/observability"

	"gorm.io/gorm"
)

// ZepchatRepository persists forum posts and replies. Vote counters and the viewer's
// own vote are computed from the votes table on every read.
type ZepchatRepository interface {
	Create(ctx context.Context, z *models.Zepchat) error
	GetByID(ctx context.Context, id, viewerID uint) (*models.Zepchat, error)
	List(ctx context.Context, q ZepchatQuery) ([]models.Zepchat, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	Delete(ctx context.Context, id uint) error
	Exists(ctx context.Context, id uint) (bool, error)

	CreateReply(ctx context.Context, reply *models.ZepReply) error
	GetReply(ctx context.Context, id, viewerID uint) (*models.ZepReply, error)
	ListReplies(ctx context.Context, zepchatID, viewerID uint) ([]models.ZepReply, error)
	ReplyExists(ctx context.Context, id uint) (bool, error)
}

// ZepchatQuery filters the forum feed.
type ZepchatQuery struct {
	Search   string
	AuthorID uint
	ViewerID uint
	Limit    int
	Offset   int
}

type zepchatRepository struct {
	db *gorm.DB
}

// NewZepchatRepository creates a new zepchat repository.
func NewZepchatRepository(db *gorm.DB) ZepchatRepository {
	return &zepchatRepository{db: db}
}

func withVoteCounts(db *gorm.DB, table string, target models.VoteTarget, viewerID uint, extra string) *gorm.DB {
	sel := table + `.*,
	(SELECT COUNT(*) FROM votes v WHERE v.target_type = ? AND v.target_id = ` + table + `.id AND v.value = 1) AS up_votes,
	(SELECT COUNT(*) FROM votes v WHERE v.target_type = ? AND v.target_id = ` + table + `.id AND v.value = -1) AS down_votes,
	COALESCE((SELECT v.value FROM votes v WHERE v.target_type = ? AND v.target_id = ` + table + `.id AND v.user_id = ?), 0) AS my_vote` + extra
	return db.Select(sel, target, target, target, viewerID)
}

const replyCountSelect = `,
	(SELECT COUNT(*) FROM zep_replies zr WHERE zr.zepchat_id = zepchats.id) AS reply_count`

func (r *zepchatRepository) Create(ctx context.Context, z *models.Zepchat) error {
	if err := conn(ctx, r.db).Create(z).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *zepchatRepository) GetByID(ctx context.Context, id, viewerID uint) (*models.Zepchat, error) {
	var z models.Zepchat
	db := withVoteCounts(conn(ctx, r.db).Model(&models.Zepchat{}), "zepchats", models.VoteTargetZepchat, viewerID, replyCountSelect)
	if err := db.Where("zepchats.id = ?", id).Take(&z).Error; err != nil {
		return nil, notFoundOr(err, "Zepchat", id)
	}
	return &z, nil
}

// List returns the feed newest first.
func (r *zepchatRepository) List(ctx context.Context, q ZepchatQuery) ([]models.Zepchat, error) {
	defer observability.TrackQuery("list", "zepchats")()
	db := withVoteCounts(conn(ctx, r.db).Model(&models.Zepchat{}), "zepchats", models.VoteTargetZepchat, q.ViewerID, replyCountSelect)
	if q.AuthorID != 0 {
		db = db.Where("zepchats.author_id = ?", q.AuthorID)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		db = db.Where(`(LOWER(zepchats.heading) LIKE ? ESCAPE '\' OR LOWER(zepchats.content) LIKE ? ESCAPE '\' OR LOWER(zepchats.tags) LIKE ? ESCAPE '\')`, p, p, p)
	}
	var out []models.Zepchat
	if err := db.Order("zepchats.created_at DESC, zepchats.id DESC").
		Limit(clampLimit(q.Limit, 20, 100)).Offset(q.Offset).
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *zepchatRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	res := conn(ctx, r.db).Model(&models.Zepchat{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Zepchat", id)
	}
	return nil
}

// Delete removes a post together with its replies and every vote on either.
// Callers should run it inside a transaction.
func (r *zepchatRepository) Delete(ctx context.Context, id uint) error {
	db := conn(ctx, r.db)
	replyIDs := db.Model(&models.ZepReply{}).Select("id").Where("zepchat_id = ?", id)
	if err := db.Where("target_type = ? AND target_id IN (?)", models.VoteTargetReply, replyIDs).
		Delete(&models.Vote{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Where("target_type = ? AND target_id = ?", models.VoteTargetZepchat, id).
		Delete(&models.Vote{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Where("zepchat_id = ?", id).Delete(&models.ZepReply{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	res := db.Delete(&models.Zepchat{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Zepchat", id)
	}
	return nil
}

func (r *zepchatRepository) Exists(ctx context.Context, id uint) (bool, error) {
	return exists(ctx, r.db, &models.Zepchat{}, id)
}

func (r *zepchatRepository) CreateReply(ctx context.Context, reply *models.ZepReply) error {
	if err := conn(ctx, r.db).Create(reply).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *zepchatRepository) GetReply(ctx context.Context, id, viewerID uint) (*models.ZepReply, error) {
	var reply models.ZepReply
	db := withVoteCounts(conn(ctx, r.db).Model(&models.ZepReply{}), "zep_replies", models.VoteTargetReply, viewerID, "")
	if err := db.Where("zep_replies.id = ?", id).Take(&reply).Error; err != nil {
		return nil, notFoundOr(err, "Reply", id)
	}
	return &reply, nil
}

// ListReplies returns a post's replies oldest first.
func (r *zepchatRepository) ListReplies(ctx context.Context, zepchatID, viewerID uint) ([]models.ZepReply, error) {
	defer observability.TrackQuery("list", "zep_replies")()
	var out []models.ZepReply
	db := withVoteCounts(conn(ctx, r.db).Model(&models.ZepReply{}), "zep_replies", models.VoteTargetReply, viewerID, "")
	if err := db.Where("zep_replies.zepchat_id = ?", zepchatID).
		Order("zep_replies.created_at ASC, zep_replies.id ASC").
		Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *zepchatRepository) ReplyExists(ctx context.Context, id uint) (bool, error) {
	return exists(ctx, r.db, &models.ZepReply{}, id)
}

func exists(ctx context.Context, db *gorm.DB, model any, id uint) (bool, error) {
	var n int64
	if err := conn(ctx, db).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}
