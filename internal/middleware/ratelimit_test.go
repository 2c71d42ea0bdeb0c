package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCheckRateLimit(t *testing.T) {
	t.Run("bypassed in development", func(t *testing.T) {
		t.Setenv("APP_ENV", "development")
		allowed, err := CheckRateLimit(context.Background(), nil, "signup", "ip:1", 1, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("nil redis errors in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		allowed, err := CheckRateLimit(context.Background(), nil, "signup", "ip:1", 1, time.Minute)
		assert.Error(t, err)
		assert.False(t, allowed)
	})

	t.Run("counts within window", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr, rdb := newTestRedis(t)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:1", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:1", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		assert.True(t, mr.TTL("rl:login:ip:1") > 0)

		mr.FastForward(time.Minute + time.Second)
		allowed, err = CheckRateLimit(ctx, rdb, "login", "ip:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("bypass in test mode", func(t *testing.T) {
		t.Setenv("APP_ENV", "test")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, 1, time.Minute), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("fail open with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, 1, time.Minute), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("fail closed with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/sensitive", RateLimitWithPolicy(nil, 1, time.Minute, FailClosed), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sensitive", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("second request is throttled", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, rdb := newTestRedis(t)
		app := fiber.New()
		app.Post("/auth/signup", RateLimit(rdb, 1, time.Minute, "signup"), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/auth/signup", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/auth/signup", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "60", resp.Header.Get("Retry-After"))
		assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
		_ = resp.Body.Close()
	})

	t.Run("signed-in users get their own budget", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr, rdb := newTestRedis(t)
		app := fiber.New()
		app.Post("/zepchats", func(c *fiber.Ctx) error {
			if uid := c.Get("X-Test-User"); uid == "7" {
				c.Locals("userID", uint(7))
			}
			return c.Next()
		}, RateLimit(rdb, 1, time.Minute, "create_zepchat"), ok)

		req := httptest.NewRequest(http.MethodPost, "/zepchats", nil)
		req.Header.Set("X-Test-User", "7")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/zepchats", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "anonymous caller has a separate IP budget")

		assert.True(t, mr.Exists("rl:create_zepchat:user:7"))
	})
}

func TestTake_ReportsRemainingAndReset(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	d, err := Take(ctx, rdb, "resend_otp", "ip:9", 3, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, 5*time.Minute, d.ResetIn)

	mr.FastForward(2 * time.Minute)
	d, err = Take(ctx, rdb, "resend_otp", "ip:9", 3, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, 3*time.Minute, d.ResetIn, "later hits do not extend the window")
}
