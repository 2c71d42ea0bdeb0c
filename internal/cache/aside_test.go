package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			calls++
			*dest = cachedUser{ID: 7, Name: "kestrel"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey(7), &first, UserTTL, fetch(&first)))
	assert.Equal(t, "kestrel", first.Name)
	assert.True(t, mr.Exists("zephyr:user:7"))

	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey(7), &second, UserTTL, fetch(&second)))
	assert.Equal(t, "kestrel", second.Name)
	assert.Equal(t, 1, calls)

	InvalidateUser(ctx, 7)
	assert.False(t, mr.Exists("zephyr:user:7"))
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := setupMiniredis(t)

	var u cachedUser
	err := Aside(context.Background(), UserKey(9), &u, time.Minute, func() error {
		return errors.New("not found")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("zephyr:user:9"))
}

func TestAside_NoClient(t *testing.T) {
	SetClient(nil)

	var u cachedUser
	err := Aside(context.Background(), UserKey(1), &u, time.Minute, func() error {
		u.Name = "direct"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", u.Name)
}

func TestAside_CacheDownFallsThrough(t *testing.T) {
	mr := setupMiniredis(t)
	mr.Close()

	var u cachedUser
	err := Aside(context.Background(), UserKey(2), &u, time.Minute, func() error {
		u.Name = "db"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "db", u.Name)
}

func TestAside_CorruptEntryIsRefetched(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set("zephyr:user:3", "{not json"))

	var u cachedUser
	err := Aside(context.Background(), UserKey(3), &u, time.Minute, func() error {
		u = cachedUser{ID: 3, Name: "osprey"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "osprey", u.Name)

	raw, err := mr.Get("zephyr:user:3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"name":"osprey"}`, raw)
}

func TestAside_ConcurrentMissesShareFetch(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()
	release := make(chan struct{})
	var calls atomic.Int32

	const readers = 8
	results := make([]cachedUser, readers)
	var wg sync.WaitGroup
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dest := &results[i]
			err := Aside(ctx, CommunityKey(5), dest, CommunityTTL, func() error {
				calls.Add(1)
				<-release
				*dest = cachedUser{ID: 5, Name: "speedrunners"}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Less(t, int(calls.Load()), readers)
	for _, r := range results {
		assert.Equal(t, "speedrunners", r.Name)
	}
}
