package credentials

import (
	"context"
	"time"

	"zephyr/internal/cache"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked token ids in Redis until the token would have expired anyway.
type Blacklist struct {
	rdb *redis.Client
}

// NewBlacklist returns a Blacklist; a nil client disables revocation checks.
func NewBlacklist(rdb *redis.Client) *Blacklist {
	return &Blacklist{rdb: rdb}
}

// Revoke marks the token identified by claims as logged out.
func (b *Blacklist) Revoke(ctx context.Context, claims *Claims) error {
	if b == nil || b.rdb == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	return b.rdb.Set(ctx, cache.BlacklistKey(claims.ID), "1", ttl).Err()
}

// IsRevoked reports whether jti was revoked. Lookup errors are treated as not revoked.
func (b *Blacklist) IsRevoked(ctx context.Context, jti string) bool {
	if b == nil || b.rdb == nil || jti == "" {
		return false
	}
	n, err := b.rdb.Exists(ctx, cache.BlacklistKey(jti)).Result()
	return err == nil && n > 0
}
