package middleware

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"zephyr/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy picks what a limited route does when Redis cannot answer.
type FailPolicy int

const (
	FailOpen   FailPolicy = iota // let the request through
	FailClosed                   // answer 503
)

var errNoRedis = errors.New("rate limit store not configured")

// Decision is the outcome of one fixed-window check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// limitsDisabled is true for local runs and tests, where APP_ENV is unset, test or development.
func limitsDisabled() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return true
	}
	return false
}

// fixedWindow increments the counter, starts its expiry on the first hit and
// returns the count with the remaining window in milliseconds.
var fixedWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// Take counts one hit against resource for id in a fixed window.
func Take(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Decision, error) {
	if limitsDisabled() {
		return Decision{Allowed: true, Remaining: limit, ResetIn: window}, nil
	}
	if rdb == nil {
		return Decision{}, errNoRedis
	}

	res, err := fixedWindow.Run(ctx, rdb, []string{"rl:" + resource + ":" + id}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 2 {
		return Decision{}, errors.New("unexpected rate limit script reply")
	}

	count := int(res[0])
	reset := time.Duration(res[1]) * time.Millisecond
	if reset <= 0 {
		reset = window
	}
	return Decision{
		Allowed:   count <= limit,
		Remaining: max(limit-count, 0),
		ResetIn:   reset,
	}, nil
}

// CheckRateLimit is Take reduced to allowed or not.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	d, err := Take(ctx, rdb, resource, id, limit, window)
	return d.Allowed, err
}

// RateLimit allows limit requests per window for each signed-in user, or each IP
// before sign-in, and fails open. The optional name shares one budget across routes.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok {
			id = "user:" + strconv.FormatUint(uint64(uid), 10)
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		d, err := Take(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil {
			if policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, rejecting",
				slog.String("resource", resource), slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusServiceUnavailable,
				models.NewAppError(models.CodeServiceUnavailable, "rate limit unavailable"))
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(d.ResetIn.Seconds()))))
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewAppError(models.CodeRateLimited, "rate limit exceeded"))
		}
		return c.Next()
	}
}
