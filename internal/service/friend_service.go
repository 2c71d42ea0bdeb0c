package service

import (
	"context"
	"log/slog"
	"strings"

	"zephyr/internal/events"
	"zephyr/internal/middleware"
	"zephyr/internal/models"
	"zephyr/internal/observability"
	"zephyr/internal/repository"
)

// Relationship values returned by FriendshipStatus.
const (
	RelationNone            = "none"
	RelationPendingSent     = "pending_sent"
	RelationPendingReceived = "pending_received"
	RelationFriends         = "friends"
)

const (
	globalFriendsLimit       = 10
	globalFriendsSearchLimit = 100
)

// FriendService drives the friend request state machine.
type FriendService struct {
	friends       repository.FriendRepository
	users         repository.UserRepository
	chats         repository.ChatRepository
	tx            repository.Transactor
	notifications *NotificationService
	events        EventPublisher
}

func NewFriendService(
	friends repository.FriendRepository,
	users repository.UserRepository,
	chats repository.ChatRepository,
	tx repository.Transactor,
	notifications *NotificationService,
	events EventPublisher,
) *FriendService {
	return &FriendService{
		friends:       friends,
		users:         users,
		chats:         chats,
		tx:            tx,
		notifications: notifications,
		events:        events,
	}
}

// AddFriend sends a friend request from userID to targetID.
func (s *FriendService) AddFriend(ctx context.Context, userID, targetID uint) (*models.Friendship, error) {
	if userID == targetID {
		return nil, models.NewValidationError("Cannot send a friend request to yourself")
	}
	requester, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}

	edge := &models.Friendship{
		RequesterID: userID,
		AddresseeID: targetID,
		Status:      models.FriendshipStatusPending,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.friends.GetBetween(ctx, userID, targetID)
		if err != nil {
			return err
		}
		if existing != nil {
			return models.NewAppError(models.CodeAlreadyRequestedOrFriends, "Friend request already sent or already friends")
		}
		if err := s.friends.Create(ctx, edge); err != nil {
			return err
		}
		return s.notifications.Notify(ctx, FromActor(requester, targetID, models.NotificationFriends,
			models.NotificationTypeFriendRequest,
			requester.DisplayName+" sent you a friend request", edge.ID))
	})
	if err != nil {
		return nil, err
	}

	observability.FriendEventsTotal.WithLabelValues("requested").Inc()
	emit(ctx, s.events, events.Event{Type: events.FriendRequested, ActorID: userID, SubjectID: targetID})
	return edge, nil
}

// AcceptFriend accepts the pending request requesterID sent to userID and
// opens their direct conversation.
func (s *FriendService) AcceptFriend(ctx context.Context, userID, requesterID uint) (*models.Conversation, error) {
	accepter, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var conv *models.Conversation
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.friends.Accept(ctx, requesterID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewAppError(models.CodeNotFound, "No pending friend request")
		}
		if err := s.notifications.ClearFriendRequest(ctx, userID, requesterID); err != nil {
			return err
		}
		conv, err = s.chats.FindOrCreateConversation(ctx, userID, requesterID)
		if err != nil {
			return err
		}
		return s.notifications.Notify(ctx, FromActor(accepter, requesterID, models.NotificationFriends,
			models.NotificationTypeFriendAccepted,
			accepter.DisplayName+" accepted your friend request", conv.ID))
	})
	if err != nil {
		return nil, err
	}

	observability.FriendEventsTotal.WithLabelValues("accepted").Inc()
	emit(ctx, s.events, events.Event{Type: events.FriendAccepted, ActorID: userID, SubjectID: requesterID})
	return conv, nil
}

// RejectFriend drops any edge between the two users. It is idempotent.
func (s *FriendService) RejectFriend(ctx context.Context, userID, otherID uint) error {
	return s.removeEdge(ctx, userID, otherID, "rejected")
}

// RemoveFriend drops the friendship between the two users. It is idempotent.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, otherID uint) error {
	return s.removeEdge(ctx, userID, otherID, "removed")
}

func (s *FriendService) removeEdge(ctx context.Context, userID, otherID uint, event string) error {
	if userID == otherID {
		return models.NewValidationError("Cannot unfriend yourself")
	}
	var removed int64
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.friends.DeleteBetween(ctx, userID, otherID)
		if err != nil {
			return err
		}
		if err := s.notifications.ClearFriendRequest(ctx, userID, otherID); err != nil {
			return err
		}
		return s.notifications.ClearFriendRequest(ctx, otherID, userID)
	})
	if err != nil {
		return err
	}
	if removed > 0 {
		observability.FriendEventsTotal.WithLabelValues(event).Inc()
		emit(ctx, s.events, events.Event{
			Type:      events.FriendRemoved,
			ActorID:   userID,
			SubjectID: otherID,
			Data:      map[string]any{"reason": event},
		})
		middleware.Logger.InfoContext(ctx, "friend edge removed",
			slog.Uint64("other_id", uint64(otherID)),
			slog.String("reason", event),
		)
	}
	return nil
}

// GetFriends lists accepted friends only.
func (s *FriendService) GetFriends(ctx context.Context, userID uint) ([]models.FriendEntry, error) {
	return s.friends.ListFriends(ctx, userID)
}

// GetGlobalFriends suggests users with no edge to userID.
func (s *FriendService) GetGlobalFriends(ctx context.Context, userID uint, search string) ([]models.UserSummary, error) {
	connected, err := s.friends.ConnectedUserIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	q := repository.UserQuery{
		Search:         strings.TrimSpace(search),
		ExcludeIDs:     append(connected, userID),
		ExcludeBlocked: true,
		ExcludeAdmins:  true,
		Limit:          globalFriendsLimit,
		Random:         true,
	}
	if q.Search != "" {
		q.Limit = globalFriendsSearchLimit
		q.Random = false
	}
	users, err := s.users.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out, nil
}

// FriendshipStatus describes the edge between userID and otherID from userID's side.
func (s *FriendService) FriendshipStatus(ctx context.Context, userID, otherID uint) (string, error) {
	edge, err := s.friends.GetBetween(ctx, userID, otherID)
	if err != nil {
		return "", err
	}
	switch {
	case edge == nil:
		return RelationNone, nil
	case edge.Status == models.FriendshipStatusAccepted:
		return RelationFriends, nil
	case edge.RequesterID == userID:
		return RelationPendingSent, nil
	default:
		return RelationPendingReceived, nil
	}
}

func (s *FriendService) IncomingRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return s.friends.ListIncoming(ctx, userID)
}

func (s *FriendService) OutgoingRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return s.friends.ListOutgoing(ctx, userID)
}
