package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"zephyr/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T) (*Notifier, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewNotifier(rdb), rdb
}

func TestNotifier_WithoutRedisDropsEverything(t *testing.T) {
	ctx := context.Background()
	for _, n := range []*Notifier{nil, NewNotifier(nil)} {
		assert.NoError(t, n.Publish(ctx, ScopeUser, 1, "ping", nil))
		assert.NoError(t, n.PublishNotification(ctx, &models.Notification{UserID: 1}))
		assert.NoError(t, n.Subscribe(ctx, func(Message) { t.Fatal("no events expected") }))
	}
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "notifications:user:42", Channel(ScopeUser, 42))
	assert.Equal(t, "chat:conv:5", Channel(ScopeConversation, 5))
	assert.Equal(t, "community:3", Channel(ScopeCommunity, 3))

	scope, id, ok := ParseChannel("chat:conv:17")
	require.True(t, ok)
	assert.Equal(t, ScopeConversation, scope)
	assert.Equal(t, uint(17), id)

	for _, bad := range []string{"community:", "community:x", "notifications:user:0", "lobby:1", ""} {
		_, _, ok := ParseChannel(bad)
		assert.False(t, ok, bad)
	}
}

func TestNotifier_NotificationReachesOwnerChannel(t *testing.T) {
	n, _ := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 4)
	require.NoError(t, n.Subscribe(ctx, func(m Message) { got <- m }))

	notif := &models.Notification{ID: 11, UserID: 42, Category: models.NotificationFriends, Type: models.NotificationTypeFriendRequest}
	require.NoError(t, n.PublishNotification(context.Background(), notif))

	select {
	case m := <-got:
		assert.Equal(t, ScopeUser, m.Scope)
		assert.Equal(t, uint(42), m.ID)
		var env struct {
			Event string              `json:"event"`
			Data  models.Notification `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(m.Payload), &env))
		assert.Equal(t, "notification", env.Event)
		assert.Equal(t, uint(11), env.Data.ID)
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestNotifier_CommunityAndDirectMessagesUseTheirScopes(t *testing.T) {
	n, _ := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 4)
	require.NoError(t, n.Subscribe(ctx, func(m Message) { got <- m }))

	require.NoError(t, n.PublishCommunityMessage(ctx, &models.CommunityMessage{CommunityID: 8}))
	require.NoError(t, n.PublishDirectMessage(ctx, &models.Message{ConversationID: 9}))

	seen := map[Scope]uint{}
	for range 2 {
		select {
		case m := <-got:
			seen[m.Scope] = m.ID
		case <-time.After(time.Second):
			t.Fatal("message was not delivered")
		}
	}
	assert.Equal(t, map[Scope]uint{ScopeCommunity: 8, ScopeConversation: 9}, seen)
}

func TestNotifier_StrayChannelsAreSkipped(t *testing.T) {
	n, rdb := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	require.NoError(t, n.Subscribe(ctx, func(Message) { calls.Add(1) }))

	require.NoError(t, rdb.Publish(ctx, "community:general", "{}").Err())
	require.NoError(t, n.Publish(ctx, ScopeCommunity, 1, "ping", nil))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	n, _ := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	require.NoError(t, n.Subscribe(ctx, func(Message) { calls.Add(1) }))

	require.NoError(t, n.Publish(context.Background(), ScopeUser, 1, "before", nil))
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, n.Publish(context.Background(), ScopeUser, 1, "after", nil))
	assert.Never(t, func() bool { return calls.Load() > 1 }, 200*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_PanickingHandlerKeepsRelayAlive(t *testing.T) {
	n, _ := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	require.NoError(t, n.Subscribe(ctx, func(Message) {
		if calls.Add(1) == 1 {
			panic("handler exploded")
		}
	}))

	require.NoError(t, n.Publish(ctx, ScopeUser, 2, "first", nil))
	require.NoError(t, n.Publish(ctx, ScopeUser, 2, "second", nil))
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 10*time.Millisecond)
}
