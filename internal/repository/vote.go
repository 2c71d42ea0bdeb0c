package repository

import (
	"context"
	"time"

	"zephyr/internal/models"
	"zephyr/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteRepository applies vote transitions as single statements so concurrent voters
// never lose updates.
type VoteRepository interface {
	Set(ctx context.Context, target models.VoteTarget, targetID, userID uint, value int) error
	DeleteIf(ctx context.Context, target models.VoteTarget, targetID, userID uint, value int) (bool, error)
	Tally(ctx context.Context, target models.VoteTarget, targetID uint) (*models.VoteTally, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new vote repository.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Set upserts the user's vote to value (+1 or -1). Setting the same value twice is a no-op.
func (r *voteRepository) Set(ctx context.Context, target models.VoteTarget, targetID, userID uint, value int) error {
	v := models.Vote{
		TargetType: target,
		TargetID:   targetID,
		UserID:     userID,
		Value:      value,
		UpdatedAt:  time.Now(),
	}
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&v).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// DeleteIf removes the user's vote only when it currently equals value.
func (r *voteRepository) DeleteIf(ctx context.Context, target models.VoteTarget, targetID, userID uint, value int) (bool, error) {
	res := conn(ctx, r.db).
		Where("target_type = ? AND target_id = ? AND user_id = ? AND value = ?", target, targetID, userID, value).
		Delete(&models.Vote{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Tally derives voter sets and counters from the vote rows.
func (r *voteRepository) Tally(ctx context.Context, target models.VoteTarget, targetID uint) (*models.VoteTally, error) {
	defer observability.TrackQuery("tally", "votes")()
	var rows []models.Vote
	if err := conn(ctx, r.db).
		Where("target_type = ? AND target_id = ?", target, targetID).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	t := &models.VoteTally{UpVoters: []uint{}, DownVoters: []uint{}}
	for _, v := range rows {
		switch v.Value {
		case 1:
			t.UpVoters = append(t.UpVoters, v.UserID)
		case -1:
			t.DownVoters = append(t.DownVoters, v.UserID)
		}
	}
	t.UpVotes = len(t.UpVoters)
	t.DownVotes = len(t.DownVoters)
	return t, nil
}
