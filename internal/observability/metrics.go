// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zephyr_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zephyr_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// VotesTotal counts applied vote operations by target type and operation.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zephyr_votes_total",
		Help: "Total number of vote operations applied",
	}, []string{"target", "op"})

	// FriendEventsTotal counts friend graph transitions.
	FriendEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zephyr_friend_events_total",
		Help: "Total number of friend graph transitions by event",
	}, []string{"event"})

	// CommunityAdminChanges counts admin hand-offs by cause (leave, transfer).
	CommunityAdminChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zephyr_community_admin_changes_total",
		Help: "Total number of community admin changes by cause",
	}, []string{"cause"})

	// BreakerStateChanges counts circuit breaker transitions for outbound clients.
	BreakerStateChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zephyr_breaker_state_changes_total",
		Help: "Circuit breaker state transitions by breaker and target state",
	}, []string{"name", "to"})

	// OutboundLatency records latency of calls to third-party services.
	OutboundLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zephyr_outbound_latency_seconds",
		Help:    "Latency of outbound calls (mail, ai, storage, geo, events)",
		Buckets: prometheus.DefBuckets,
	}, []string{"target", "result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// ObserveOutbound records the latency of a third-party call started at start.
func ObserveOutbound(target string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	OutboundLatency.WithLabelValues(target, result).Observe(time.Since(start).Seconds())
}
