package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"zephyr/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_LookupByUniqueColumn(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	byEmail := regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1 ORDER BY "users"."id" LIMIT $2`)
	byUsername := regexp.QuoteMeta(`SELECT * FROM "users" WHERE username = $1 ORDER BY "users"."id" LIMIT $2`)

	mock.ExpectQuery(byEmail).WithArgs("mira@zephyr.gg", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username"}).AddRow(7, "mira@zephyr.gg", "mira"))
	u, err := repo.GetByEmail(ctx, "mira@zephyr.gg")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, uint(7), u.ID)

	mock.ExpectQuery(byUsername).WithArgs("nobody", 1).WillReturnError(gorm.ErrRecordNotFound)
	u, err = repo.GetByUsername(ctx, "nobody")
	assert.NoError(t, err, "a free username is not an error")
	assert.Nil(t, u)

	mock.ExpectQuery(byEmail).WithArgs("lag@zephyr.gg", 1).WillReturnError(errors.New("connection reset"))
	u, err = repo.GetByEmail(ctx, "lag@zephyr.gg")
	assert.Nil(t, u)
	assert.True(t, models.HasCode(err, models.CodeInternal))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SQLite(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 4)

	t.Run("Create duplicate email conflicts", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Username: "other", DisplayName: "O", Email: users[0].Email, Password: "x"})
		assert.True(t, models.HasCode(err, models.CodeConflict))
	})

	t.Run("GetByID", func(t *testing.T) {
		u, err := repo.GetByID(ctx, users[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "user1", u.Username)

		_, err = repo.GetByID(ctx, 999)
		assert.True(t, models.HasCode(err, models.CodeNotFound))
	})

	t.Run("UpdateFields username taken", func(t *testing.T) {
		err := repo.UpdateFields(ctx, users[1].ID, map[string]any{"username": "user1"})
		assert.True(t, models.HasCode(err, models.CodeConflict))

		err = repo.UpdateFields(ctx, 999, map[string]any{"display_name": "ghost"})
		assert.True(t, models.HasCode(err, models.CodeNotFound))
	})

	t.Run("Search excludes ids and blocked users", func(t *testing.T) {
		require.NoError(t, repo.SetBlocked(ctx, users[3].ID, true))

		found, err := repo.Search(ctx, UserQuery{
			Search:         "user",
			ExcludeIDs:     []uint{users[0].ID},
			ExcludeBlocked: true,
		})
		require.NoError(t, err)
		ids := make([]uint, 0, len(found))
		for _, u := range found {
			ids = append(ids, u.ID)
		}
		assert.ElementsMatch(t, []uint{users[1].ID, users[2].ID}, ids)
	})

	t.Run("Search escapes wildcards", func(t *testing.T) {
		found, err := repo.Search(ctx, UserQuery{Search: "%"})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("List returns total", func(t *testing.T) {
		list, total, err := repo.List(ctx, "", 2, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		assert.Len(t, list, 2)
		assert.Equal(t, users[3].ID, list[0].ID)
	})
}
