// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"zephyr/internal/middleware"
	"zephyr/internal/observability"

	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	FriendRequested   = "friend.requested"
	FriendAccepted    = "friend.accepted"
	FriendRemoved     = "friend.removed"
	CommunityCreated  = "community.created"
	CommunityAdmin    = "community.admin_changed"
	ZepchatCreated    = "zepchat.created"
	ZepchatVoted      = "zepchat.voted"
	ReplyVoted        = "zepchat.reply_voted"
	UserSignedUp      = "user.signed_up"
	ModerationBlock   = "moderation.user_blocked"
	ModerationUnblock = "moderation.user_unblocked"
	ModerationBan     = "moderation.community_banned"
	ModerationUnban   = "moderation.community_unbanned"
	ModerationTicket  = "moderation.ticket_updated"
)

// Event is the envelope written to the topic. SubjectID is used as the message key
// so events about one entity stay ordered within a partition.
type Event struct {
	Type       string         `json:"type"`
	ActorID    uint           `json:"actor_id,omitempty"`
	SubjectID  uint           `json:"subject_id"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes events to a single topic. A Producer built without brokers drops events.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a producer for topic. With no brokers it returns a no-op producer.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{topic: topic}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: w, topic: topic}
}

// Enabled reports whether events are actually delivered.
func (p *Producer) Enabled() bool {
	return p != nil && p.writer != nil
}

// Publish writes e to the topic.
func (p *Producer) Publish(ctx context.Context, e Event) error {
	if !p.Enabled() {
		return nil
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	start := time.Now()
	ctx, finish := observability.StartClientSpan(ctx, "kafka", "publish")
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.SubjectID), 10)),
		Value: b,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	})
	finish(err)
	observability.ObserveOutbound("kafka", start, err)
	return err
}

// Emit publishes e and logs a failure instead of returning it.
func (p *Producer) Emit(ctx context.Context, e Event) {
	if err := p.Publish(ctx, e); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish domain event",
			slog.String("type", e.Type),
			slog.String("error", err.Error()),
		)
	}
}

// Close flushes pending messages.
func (p *Producer) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
