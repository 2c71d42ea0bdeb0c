package service

import (
	"context"

	"zephyr/internal/models"
	"zephyr/internal/observability"
	"zephyr/internal/repository"
)

// applyVote performs op for userID on one target with a single statement.
//
//	upVote         row := +1 (no-op when already +1)
//	downVote       row := -1 (no-op when already -1)
//	removeUpVote   delete row where value = +1
//	removeDownVote delete row where value = -1
func applyVote(ctx context.Context, votes repository.VoteRepository, target models.VoteTarget, targetID, userID uint, op models.VoteType) error {
	var err error
	switch op {
	case models.VoteUp:
		err = votes.Set(ctx, target, targetID, userID, 1)
	case models.VoteDown:
		err = votes.Set(ctx, target, targetID, userID, -1)
	case models.VoteRemoveUp:
		_, err = votes.DeleteIf(ctx, target, targetID, userID, 1)
	case models.VoteRemoveDown:
		_, err = votes.DeleteIf(ctx, target, targetID, userID, -1)
	default:
		return models.NewAppError(models.CodeInvalidVoteType, "Invalid vote type")
	}
	if err != nil {
		return err
	}
	observability.VotesTotal.WithLabelValues(string(target), string(op)).Inc()
	return nil
}

func validVoteType(op models.VoteType) bool {
	switch op {
	case models.VoteUp, models.VoteDown, models.VoteRemoveUp, models.VoteRemoveDown:
		return true
	}
	return false
}
