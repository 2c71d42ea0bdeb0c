package repository

import (
	"context"
	"testing"

	"zephyr/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFriendRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 3)
	u1, u2, u3 := users[0], users[1], users[2]

	t.Run("Create and ListIncoming", func(t *testing.T) {
		err := repo.Create(ctx, &models.Friendship{
			RequesterID: u1.ID,
			AddresseeID: u2.ID,
			Status:      models.FriendshipStatusPending,
		})
		require.NoError(t, err)

		incoming, err := repo.ListIncoming(ctx, u2.ID)
		require.NoError(t, err)
		require.Len(t, incoming, 1)
		assert.Equal(t, u1.ID, incoming[0].RequesterID)
		require.NotNil(t, incoming[0].Requester)
		assert.Equal(t, "user1", incoming[0].Requester.Username)

		outgoing, err := repo.ListOutgoing(ctx, u1.ID)
		require.NoError(t, err)
		assert.Len(t, outgoing, 1)
	})

	t.Run("Duplicate request", func(t *testing.T) {
		err := repo.Create(ctx, &models.Friendship{RequesterID: u1.ID, AddresseeID: u2.ID, Status: models.FriendshipStatusPending})
		assert.True(t, models.HasCode(err, models.CodeAlreadyRequestedOrFriends))
	})

	t.Run("Mirrored request is a duplicate", func(t *testing.T) {
		back := &models.Friendship{RequesterID: u2.ID, AddresseeID: u1.ID, Status: models.FriendshipStatusPending}
		err := repo.Create(ctx, back)
		assert.True(t, models.HasCode(err, models.CodeAlreadyRequestedOrFriends))
		assert.Equal(t, models.PairKey(u1.ID, u2.ID), back.PairKey)

		var n int64
		require.NoError(t, db.Model(&models.Friendship{}).Where("pair_key = ?", models.PairKey(u1.ID, u2.ID)).Count(&n).Error)
		assert.Equal(t, int64(1), n)
	})

	t.Run("GetBetween either direction", func(t *testing.T) {
		f, err := repo.GetBetween(ctx, u2.ID, u1.ID)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, models.FriendshipStatusPending, f.Status)

		none, err := repo.GetBetween(ctx, u1.ID, u3.ID)
		assert.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("Accept wrong direction is a no-op", func(t *testing.T) {
		ok, err := repo.Accept(ctx, u2.ID, u1.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Accept once", func(t *testing.T) {
		ok, err := repo.Accept(ctx, u1.ID, u2.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Accept(ctx, u1.ID, u2.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		friends, err := repo.ListFriends(ctx, u2.ID)
		require.NoError(t, err)
		require.Len(t, friends, 1)
		assert.Equal(t, u1.ID, friends[0].Friend.ID)

		ids, err := repo.FriendIDs(ctx, u1.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint{u2.ID}, ids)
	})

	t.Run("ConnectedUserIDs includes pending", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &models.Friendship{RequesterID: u3.ID, AddresseeID: u1.ID, Status: models.FriendshipStatusPending}))

		ids, err := repo.ConnectedUserIDs(ctx, u1.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{u2.ID, u3.ID}, ids)

		ids, err = repo.FriendIDs(ctx, u3.ID)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("DeleteBetween", func(t *testing.T) {
		n, err := repo.DeleteBetween(ctx, u2.ID, u1.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		friends, err := repo.ListFriends(ctx, u1.ID)
		require.NoError(t, err)
		assert.Empty(t, friends)
	})
}

func TestFriendRepository_PairKeyViolationSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewFriendRepository(db)

	mock.ExpectQuery(`INSERT INTO "friendships" \("requester_id","addressee_id","pair_key","status".*RETURNING "id"`).
		WithArgs(9, 4, "4:9", models.FriendshipStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_friendships_pair_key"})

	err := repo.Create(context.Background(), &models.Friendship{RequesterID: 9, AddresseeID: 4, Status: models.FriendshipStatusPending})
	assert.True(t, models.HasCode(err, models.CodeAlreadyRequestedOrFriends))
	assert.NoError(t, mock.ExpectationsWereMet())
}
