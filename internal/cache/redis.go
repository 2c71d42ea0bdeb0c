// Package cache holds the shared Redis client and the cache-aside helpers the
// repositories read through.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"zephyr/internal/middleware"
	"zephyr/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// errorHook counts failed commands. redis.Nil is a miss, not a failure.
type errorHook struct{}

func (errorHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countError(cmd.Name(), err)
		return err
	}
}

func (errorHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countError("pipeline", err)
		return err
	}
}

func countError(op string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrorRate.WithLabelValues(op).Inc()
	}
}

// Options accepts either host:port or a redis:// / rediss:// URL.
func Options(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		return redis.ParseURL(addr)
	}
	return &redis.Options{Addr: addr}, nil
}

// Connect dials Redis and installs the client for the package helpers. Redis is
// optional: on any failure it logs, leaves the package without a client and
// returns nil, and callers fall back to uncached reads.
func Connect(ctx context.Context, addr string) *redis.Client {
	opts, err := Options(addr)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "invalid REDIS_URL, running without Redis", slog.String("error", err.Error()))
		SetClient(nil)
		return nil
	}

	c := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "Redis unreachable, running without Redis",
			slog.String("addr", opts.Addr), slog.String("error", err.Error()))
		_ = c.Close()
		SetClient(nil)
		return nil
	}

	middleware.Logger.InfoContext(ctx, "Redis connected", slog.String("addr", opts.Addr))
	SetClient(c)
	return c
}

// SetClient replaces the package client. Tests point it at miniredis.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(errorHook{})
	}
	client = c
}

// GetClient returns the installed client, or nil when running without Redis.
func GetClient() *redis.Client {
	return client
}
