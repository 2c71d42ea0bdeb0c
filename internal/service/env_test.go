package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"zephyr/internal/credentials"
	"zephyr/internal/database"
	"zephyr/internal/events"
	"zephyr/internal/models"
	"zephyr/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

// mailerStub records the last code sent to each address.
type mailerStub struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func newMailerStub() *mailerStub {
	return &mailerStub{codes: map[string]string{}}
}

func (m *mailerStub) SendOTP(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.codes[email] = code
	return nil
}

func (m *mailerStub) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

// eventsRecorder keeps every emitted event.
type eventsRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventsRecorder) Emit(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventsRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testEnv wires every service against an in-memory SQLite database.
type testEnv struct {
	db     *gorm.DB
	mailer *mailerStub
	events *eventsRecorder
	clock  *clock

	users         repository.UserRepository
	friendsRepo   repository.FriendRepository
	chats         repository.ChatRepository
	communityRepo repository.CommunityRepository
	votes         repository.VoteRepository
	notifRepo     repository.NotificationRepository

	identity      *IdentityService
	friends       *FriendService
	chat          *ChatService
	communities   *CommunityService
	zepchats      *ZepchatService
	notifications *NotificationService
	reports       *ReportService
	admin         *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	env := &testEnv{
		db:     db,
		mailer: newMailerStub(),
		events: &eventsRecorder{},
		clock:  &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	tx := repository.NewTransactor(db)
	env.users = repository.NewUserRepository(db)
	env.friendsRepo = repository.NewFriendRepository(db)
	env.chats = repository.NewChatRepository(db)
	env.communityRepo = repository.NewCommunityRepository(db)
	env.votes = repository.NewVoteRepository(db)
	env.notifRepo = repository.NewNotificationRepository(db)
	zepchats := repository.NewZepchatRepository(db)
	moderation := repository.NewModerationRepository(db)

	env.notifications = NewNotificationService(env.notifRepo, nil)
	env.identity = NewIdentityService(env.users, repository.NewOTPRepository(db), tx,
		credentials.NewTokenIssuer(testSecret), env.mailer).
		WithEvents(env.events).
		WithClock(env.clock.Now)
	env.friends = NewFriendService(env.friendsRepo, env.users, env.chats, tx, env.notifications, env.events)
	env.chat = NewChatService(env.chats, env.friendsRepo, nil, nil)
	env.communities = NewCommunityService(env.communityRepo, env.users, tx, env.notifications, nil, nil, env.events)
	env.zepchats = NewZepchatService(zepchats, env.votes, env.users, tx, env.notifications, env.events)
	env.reports = NewReportService(moderation, env.users, env.communityRepo)
	env.admin = NewAdminService(env.users, env.communityRepo, moderation, tx, env.events)
	return env
}

// seedUsers inserts n users named user1..userN.
func (e *testEnv) seedUsers(t *testing.T, n int) []*models.User {
	t.Helper()
	out := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		hash, err := credentials.HashPassword("secret")
		require.NoError(t, err)
		u := &models.User{
			Username:    fmt.Sprintf("user%d", i+1),
			DisplayName: fmt.Sprintf("User %d", i+1),
			Email:       fmt.Sprintf("user%d@example.com", i+1),
			Password:    hash,
			Status:      models.UserStatusOnline,
		}
		require.NoError(t, e.db.Create(u).Error)
		out = append(out, u)
	}
	return out
}

func (e *testEnv) makeFriends(t *testing.T, a, b uint) {
	t.Helper()
	ctx := context.Background()
	_, err := e.friends.AddFriend(ctx, a, b)
	require.NoError(t, err)
	_, err = e.friends.AcceptFriend(ctx, b, a)
	require.NoError(t, err)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, models.HasCode(err, code), "expected %s, got %v", code, err)
}
