package middleware

import (
	"net/http/httptest"
	"testing"

	"zephyr/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() { observability.Tracer = prev })
	return rec
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	rec := withRecorder(t)
	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/api/zepchats/:id", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(42))
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/zepchats/17", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/zepchats/:id", spans[0].Name())

	uid, ok := attr(spans[0], "zephyr.user_id")
	require.True(t, ok)
	assert.Equal(t, "42", uid.AsString())
	status, _ := attr(spans[0], "http.response.status_code")
	assert.Equal(t, int64(200), status.AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTracingMiddleware_MarksServerErrors(t *testing.T) {
	rec := withRecorder(t)
	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/api/communities", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, "database down")
	})

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/communities", nil))
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	status, _ := attr(spans[0], "http.response.status_code")
	assert.Equal(t, int64(503), status.AsInt64())
}
