package cache

import (
	"context"
	"strconv"
	"time"
)

// Every key lives under the zephyr: namespace so a shared Redis stays tidy.
const namespace = "zephyr:"

const (
	UserTTL      = 5 * time.Minute
	CommunityTTL = 10 * time.Minute
)

func idKey(kind string, id uint) string {
	return namespace + kind + ":" + strconv.FormatUint(uint64(id), 10)
}

// UserKey holds a public profile, never the password hash.
func UserKey(userID uint) string { return idKey("user", userID) }

func CommunityKey(communityID uint) string { return idKey("community", communityID) }

// BlacklistKey marks a revoked token id until the token would have expired.
func BlacklistKey(jti string) string { return namespace + "revoked:" + jti }

// Invalidate drops a cached entry. Failures only cost a stale read until the TTL.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	_ = client.Del(ctx, keys...).Err()
}

func InvalidateUser(ctx context.Context, userID uint) { Invalidate(ctx, UserKey(userID)) }

func InvalidateCommunity(ctx context.Context, communityID uint) {
	Invalidate(ctx, CommunityKey(communityID))
}
