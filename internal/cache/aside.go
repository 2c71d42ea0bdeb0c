package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"zephyr/internal/middleware"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// loads collapses concurrent misses on one key into a single fetch.
var loads singleflight.Group

// GetJSON decodes key into dest. A miss, or running without Redis, is (false, nil).
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, json.Unmarshal(raw, dest)
}

// SetJSON stores v as JSON under key for ttl.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return setRaw(ctx, key, raw, ttl)
}

func setRaw(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	return client.Set(ctx, key, raw, ttl).Err()
}

// Aside reads key into dest, falling back to fetch on a miss. fetch must fill
// dest. Callers racing on the same miss wait for one fetch and decode its result.
// Redis failures are logged and never fail the read.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if found && err == nil {
		return nil
	}

	leader := false
	v, err, _ := loads.Do(key, func() (any, error) {
		leader = true
		if err := fetch(); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(dest)
		if err != nil {
			return nil, err
		}
		if err := setRaw(ctx, key, raw, ttl); err != nil {
			middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return raw, nil
	})
	if err != nil || leader {
		return err
	}
	return json.Unmarshal(v.([]byte), dest)
}
