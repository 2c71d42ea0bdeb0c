// Package middleware provides Fiber middleware and the process-wide structured logger.
package middleware

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide logger. Records logged with a request context carry
// request_id, user_id and trace_id.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// ctxHandler copies request-scoped ids from the context onto each record.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range []contextKey{RequestIDKey, TraceIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	if uid, ok := ctx.Value(UserIDKey).(uint); ok && uid != 0 {
		r.AddAttrs(slog.Uint64(string(UserIDKey), uint64(uid)))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

// NewLogger writes JSON in production and text elsewhere. Development also gets debug records.
func NewLogger(w io.Writer, env string) *slog.Logger {
	env = strings.ToLower(strings.TrimSpace(env))
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if env == "development" {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&ctxHandler{handler}).With(slog.String("service", "zephyr-api"))
}

func init() {
	Logger = NewLogger(os.Stdout, os.Getenv("APP_ENV"))
}

// WithUserID binds the authenticated user to ctx for logging.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// ContextMiddleware moves the request and trace ids from Fiber locals into the
// user context so services logging with ctx pick them up.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok {
			ctx = context.WithValue(ctx, RequestIDKey, rid)
		}
		if tid, ok := c.Locals("traceID").(string); ok {
			ctx = context.WithValue(ctx, TraceIDKey, tid)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger writes one access line per request: info for success, warn
// for 4xx, error for 5xx or a returned error. Health probes are not logged.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/health/") {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		if route := c.Route(); route != nil && route.Path != c.Path() {
			attrs = append(attrs, slog.String("route", route.Path))
		}

		level, msg := slog.LevelInfo, "request"
		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			level, msg = slog.LevelError, "request failed"
		case status >= fiber.StatusInternalServerError:
			level, msg = slog.LevelError, "request failed"
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		}
		Logger.LogAttrs(c.UserContext(), level, msg, attrs...)
		return err
	}
}
