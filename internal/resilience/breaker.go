// Package resilience wraps outbound calls in circuit breakers.
package resilience

import (
	"log/slog"
	"time"

	"zephyr/internal/middleware"
	"zephyr/internal/observability"

	"github.com/sony/gobreaker"
)

// NewBreaker returns a breaker that opens after maxFailures consecutive failures
// and probes again after timeout.
func NewBreaker(name string, maxFailures int, timeout time.Duration) *gobreaker.CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.BreakerStateChanges.WithLabelValues(name, to.String()).Inc()
			middleware.Logger.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}
