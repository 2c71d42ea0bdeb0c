// Package notifications fans Zephyr realtime events out over Redis pub/sub.
// Each user, direct conversation and community chat has its own channel.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"zephyr/internal/middleware"
	"zephyr/internal/models"

	"github.com/redis/go-redis/v9"
)

// Scope is the channel prefix an event is routed by.
type Scope string

const (
	ScopeUser         Scope = "notifications:user"
	ScopeConversation Scope = "chat:conv"
	ScopeCommunity    Scope = "community"
)

var scopes = []Scope{ScopeUser, ScopeConversation, ScopeCommunity}

// Channel names the Redis channel for one user, conversation or community.
func Channel(scope Scope, id uint) string {
	return string(scope) + ":" + strconv.FormatUint(uint64(id), 10)
}

// ParseChannel is the inverse of Channel.
func ParseChannel(channel string) (Scope, uint, bool) {
	for _, s := range scopes {
		rest, ok := strings.CutPrefix(channel, string(s)+":")
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(rest, 10, 64)
		if err != nil || id == 0 {
			return "", 0, false
		}
		return s, uint(id), true
	}
	return "", 0, false
}

// Envelope is the JSON body published on every channel.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Message is one event received by a subscriber.
type Message struct {
	Scope   Scope
	ID      uint
	Payload string
}

// Notifier publishes and relays realtime events. The zero value and a nil
// *Notifier are valid and drop everything, which is how the API runs without Redis.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) enabled() bool { return n != nil && n.rdb != nil }

// Publish wraps data in an Envelope and sends it to the scope's channel.
func (n *Notifier) Publish(ctx context.Context, scope Scope, id uint, event string, data any) error {
	if !n.enabled() {
		return nil
	}
	body, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	return n.rdb.Publish(ctx, Channel(scope, id), body).Err()
}

// PublishNotification pushes a stored notification to its owner.
func (n *Notifier) PublishNotification(ctx context.Context, notif *models.Notification) error {
	return n.Publish(ctx, ScopeUser, notif.UserID, "notification", notif)
}

func (n *Notifier) PublishDirectMessage(ctx context.Context, msg *models.Message) error {
	return n.Publish(ctx, ScopeConversation, msg.ConversationID, "message", msg)
}

func (n *Notifier) PublishCommunityMessage(ctx context.Context, msg *models.CommunityMessage) error {
	return n.Publish(ctx, ScopeCommunity, msg.CommunityID, "community_message", msg)
}

// Subscribe listens on every scope and calls handle for each event until ctx
// ends. It returns once the subscription is confirmed; delivery runs on its own
// goroutine and a panicking handler only loses the event it panicked on.
func (n *Notifier) Subscribe(ctx context.Context, handle func(Message)) error {
	if !n.enabled() {
		return nil
	}
	patterns := make([]string, len(scopes))
	for i, s := range scopes {
		patterns[i] = string(s) + ":*"
	}
	sub := n.rdb.PSubscribe(ctx, patterns...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to realtime channels: %w", err)
	}

	go n.relay(ctx, sub, handle)
	return nil
}

func (n *Notifier) relay(ctx context.Context, sub *redis.PubSub, handle func(Message)) {
	defer func() { _ = sub.Close() }()
	in := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			scope, id, ok := ParseChannel(raw.Channel)
			if !ok {
				middleware.Logger.WarnContext(ctx, "realtime event on unknown channel", slog.String("channel", raw.Channel))
				continue
			}
			deliver(ctx, handle, Message{Scope: scope, ID: id, Payload: raw.Payload})
		}
	}
}

func deliver(ctx context.Context, handle func(Message), msg Message) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.ErrorContext(ctx, "realtime handler panicked",
				slog.String("scope", string(msg.Scope)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	handle(msg)
}
