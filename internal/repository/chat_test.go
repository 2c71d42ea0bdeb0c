package repository

import (
	"context"
	"fmt"
	"testing"

	"zephyr/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, 3)
	u1, u2, u3 := users[0], users[1], users[2]

	var convID uint

	t.Run("FindOrCreateConversation is idempotent", func(t *testing.T) {
		c1, err := repo.FindOrCreateConversation(ctx, u1.ID, u2.ID)
		require.NoError(t, err)
		c2, err := repo.FindOrCreateConversation(ctx, u2.ID, u1.ID)
		require.NoError(t, err)
		assert.Equal(t, c1.ID, c2.ID)
		convID = c1.ID

		var n int64
		require.NoError(t, db.Model(&models.Conversation{}).Count(&n).Error)
		assert.Equal(t, int64(1), n)
	})

	t.Run("GetConversationByPair", func(t *testing.T) {
		c, err := repo.GetConversationByPair(ctx, u2.ID, u1.ID)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, convID, c.ID)

		none, err := repo.GetConversationByPair(ctx, u1.ID, u3.ID)
		assert.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("IsParticipant", func(t *testing.T) {
		ok, err := repo.IsParticipant(ctx, convID, u1.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.IsParticipant(ctx, convID, u3.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ListMessages pages in chronological order", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.CreateMessage(ctx, &models.Message{
				ConversationID: convID,
				SenderID:       u1.ID,
				Content:        fmt.Sprintf("msg %d", i),
			}))
		}

		latest, err := repo.ListMessages(ctx, convID, 2, 0)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, "msg 3", latest[0].Content)
		assert.Equal(t, "msg 4", latest[1].Content)

		older, err := repo.ListMessages(ctx, convID, 10, latest[0].ID)
		require.NoError(t, err)
		assert.Len(t, older, 3)
		assert.Equal(t, "msg 0", older[0].Content)
	})
}
