package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"zephyr/internal/config"
	"zephyr/internal/credentials"
	"zephyr/internal/database"
	"zephyr/internal/geo"
	"zephyr/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSecret   = "test-secret-key-12345678901234567890123456789012"
	testPassword = "Sup3r$ecretPass"
)

// mailerStub keeps the last code sent to each address.
type mailerStub struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *mailerStub) SendOTP(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = code
	return nil
}

func (m *mailerStub) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type chatModelStub struct {
	generateFn func(ctx context.Context, prompt string) (string, error)
}

func (s *chatModelStub) Generate(ctx context.Context, prompt string) (string, error) {
	return s.generateFn(ctx, prompt)
}

// locationIndexStub keeps positions in memory and reports every other stored user as nearby.
type locationIndexStub struct {
	mu     sync.Mutex
	points map[uint][2]float64
}

func (s *locationIndexStub) Upsert(_ context.Context, userID uint, lng, lat float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[userID] = [2]float64{lng, lat}
	return nil
}

func (s *locationIndexStub) Get(_ context.Context, userID uint) (*geo.UserLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.points[userID]
	if !ok {
		return nil, nil
	}
	return &geo.UserLocation{UserID: userID, Location: geo.NewPoint(p[0], p[1])}, nil
}

func (s *locationIndexStub) Nearby(_ context.Context, _, _, _ float64, exclude []uint, _ int) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	skip := make(map[uint]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []uint
	for id := range s.points {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type testServer struct {
	srv    *Server
	app    *fiber.App
	db     *gorm.DB
	mailer *mailerStub
}

// newTestServer wires a Server against in-memory SQLite and miniredis.
func newTestServer(t *testing.T, opts ...func(*config.Config, *Deps)) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		Env:            "test",
		Port:           "0",
		JWTSecret:      testSecret,
		AllowedOrigins: "http://localhost:5173",
	}
	mailer := &mailerStub{codes: map[string]string{}}
	deps := Deps{Mailer: mailer}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	srv, err := NewServerWithDeps(cfg, db, rdb, deps)
	require.NoError(t, err)
	return &testServer{srv: srv, app: srv.NewApp(), db: db, mailer: mailer}
}

// createUser inserts a verified account directly.
func (ts *testServer) createUser(t *testing.T, username string, admin bool) *models.User {
	t.Helper()
	hash, err := credentials.HashPassword(testPassword)
	require.NoError(t, err)
	u := &models.User{
		Username:    username,
		DisplayName: username,
		Email:       username + "@example.com",
		Password:    hash,
		Status:      models.UserStatusOnline,
		IsAdmin:     admin,
	}
	require.NoError(t, ts.db.Create(u).Error)
	return u
}

func (ts *testServer) tokenFor(t *testing.T, u *models.User, role credentials.Role) string {
	t.Helper()
	token, _, err := ts.srv.tokens.Issue(u.ID, role)
	require.NoError(t, err)
	return token
}

// request sends body as JSON with the optional cookie and returns the response and its body.
func (ts *testServer) request(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, data
}

func userSession(token string) *http.Cookie {
	return &http.Cookie{Name: userCookie, Value: token}
}

func adminSession(token string) *http.Cookie {
	return &http.Cookie{Name: adminCookie, Value: token}
}

func responseCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeError(t *testing.T, data []byte) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &body), string(data))
	return body
}

func TestHealthLive(t *testing.T) {
	ts := newTestServer(t)
	resp, data := ts.request(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"status":"up"`)
}

func TestHealthReady(t *testing.T) {
	ts := newTestServer(t)
	resp, data := ts.request(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Contains(t, string(data), `"database":"healthy"`)
}

func TestSignupVerifyAndFetchProfile(t *testing.T) {
	ts := newTestServer(t)

	resp, data := ts.request(t, http.MethodPost, "/api/auth/signup", fiber.Map{
		"email":        "Rook@Example.com",
		"username":     "rook",
		"display_name": "Rook",
		"password":     testPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	code := ts.mailer.code("rook@example.com")
	require.NotEmpty(t, code)

	resp, data = ts.request(t, http.MethodPost, "/api/auth/check-exist", fiber.Map{"email": "rook@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"exists":false}`, string(data))

	resp, data = ts.request(t, http.MethodPost, "/api/auth/verify-otp", fiber.Map{
		"email": "rook@example.com",
		"otp":   code,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	cookie := responseCookie(resp, userCookie)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	resp, data = ts.request(t, http.MethodGet, "/api/users/me", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var me models.User
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, "rook", me.Username)
	assert.NotContains(t, string(data), "$2a$")

	resp, data = ts.request(t, http.MethodPost, "/api/auth/check-exist", fiber.Map{"email": "rook@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"exists":true}`, string(data))
}

func TestSignup_RejectsWeakPassword(t *testing.T) {
	ts := newTestServer(t)

	resp, data := ts.request(t, http.MethodPost, "/api/auth/signup", fiber.Map{
		"email":        "weak@example.com",
		"username":     "weak",
		"display_name": "Weak",
		"password":     "short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, decodeError(t, data).Code)
	assert.Empty(t, ts.mailer.code("weak@example.com"))
}

func TestVerifyOTP_Failures(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.request(t, http.MethodPost, "/api/auth/signup", fiber.Map{
		"email":        "knight@example.com",
		"username":     "knight",
		"display_name": "Knight",
		"password":     testPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("incorrect code", func(t *testing.T) {
		resp, data := ts.request(t, http.MethodPost, "/api/auth/verify-otp", fiber.Map{
			"email": "knight@example.com",
			"otp":   "0000",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeIncorrectOTP, decodeError(t, data).Code)
	})

	t.Run("expired code", func(t *testing.T) {
		require.NoError(t, ts.db.Model(&models.PendingSignup{}).
			Where("email = ?", "knight@example.com").
			Update("generated_at", time.Now().Add(-2*credentials.OTPWindow)).Error)

		resp, data := ts.request(t, http.MethodPost, "/api/auth/verify-otp", fiber.Map{
			"email": "knight@example.com",
			"otp":   ts.mailer.code("knight@example.com"),
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeOTPExpired, decodeError(t, data).Code)
	})
}

func TestLoginAndLogoutRevokesSession(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "bishop", false)

	resp, data := ts.request(t, http.MethodPost, "/api/auth/login", fiber.Map{
		"email":    "bishop@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	cookie := responseCookie(resp, userCookie)
	require.NotNil(t, cookie)

	resp, _ = ts.request(t, http.MethodGet, "/api/users/me", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.request(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := responseCookie(resp, userCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	resp, data = ts.request(t, http.MethodGet, "/api/users/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token has been revoked", decodeError(t, data).Error)
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "pawn", false)

	resp, data := ts.request(t, http.MethodPost, "/api/auth/login", fiber.Map{
		"email":    "pawn@example.com",
		"password": "Wrong$Password1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeUnauthorized, decodeError(t, data).Code)
	assert.Nil(t, responseCookie(resp, userCookie))
}

func TestBlockedUserIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	u := ts.createUser(t, "rogue", false)
	token := ts.tokenFor(t, u, credentials.RoleUser)
	require.NoError(t, ts.db.Model(u).Update("is_blocked", true).Error)

	resp, data := ts.request(t, http.MethodGet, "/api/friends", nil, userSession(token))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You are blocked by admin", decodeError(t, data).Error)
}

func TestFriendFlowAndDirectMessages(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createUser(t, "alice", false)
	bob := ts.createUser(t, "bob", false)
	aliceCookie := userSession(ts.tokenFor(t, alice, credentials.RoleUser))
	bobCookie := userSession(ts.tokenFor(t, bob, credentials.RoleUser))

	resp, data := ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d", bob.ID), fiber.Map{"content": "gg"}, aliceCookie)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(data))

	resp, data = ts.request(t, http.MethodPost, fmt.Sprintf("/api/friends/%d", bob.ID), nil, aliceCookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = ts.request(t, http.MethodPost, fmt.Sprintf("/api/friends/%d", bob.ID), nil, aliceCookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeAlreadyRequestedOrFriends, decodeError(t, data).Code)

	resp, data = ts.request(t, http.MethodGet, fmt.Sprintf("/api/friends/status/%d", bob.ID), nil, aliceCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"pending_sent"}`, string(data))

	resp, data = ts.request(t, http.MethodGet, "/api/notifications", nil, bobCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var notes []models.Notification
	require.NoError(t, json.Unmarshal(data, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationFriends, notes[0].Category)

	resp, data = ts.request(t, http.MethodPost, fmt.Sprintf("/api/friends/%d/accept", alice.ID), nil, bobCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = ts.request(t, http.MethodGet, fmt.Sprintf("/api/friends/status/%d", alice.ID), nil, bobCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"friends"}`, string(data))

	resp, data = ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d", bob.ID), fiber.Map{"content": "gg"}, aliceCookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = ts.request(t, http.MethodGet, fmt.Sprintf("/api/messages/%d", alice.ID), nil, bobCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var msgs []models.Message
	require.NoError(t, json.Unmarshal(data, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "gg", msgs[0].Content)

	resp, _ = ts.request(t, http.MethodDelete, "/api/notifications", nil, bobCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, data = ts.request(t, http.MethodGet, "/api/notifications", nil, bobCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(data))
}

func TestFriendRequestToSelfRejected(t *testing.T) {
	ts := newTestServer(t)
	u := ts.createUser(t, "solo", false)

	resp, data := ts.request(t, http.MethodPost, fmt.Sprintf("/api/friends/%d", u.ID), nil,
		userSession(ts.tokenFor(t, u, credentials.RoleUser)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, decodeError(t, data).Code)
}

func TestCommunityAdminCannotLeaveAlone(t *testing.T) {
	ts := newTestServer(t)
	u := ts.createUser(t, "founder", false)
	cookie := userSession(ts.tokenFor(t, u, credentials.RoleUser))

	resp, data := ts.request(t, http.MethodPost, "/api/communities", fiber.Map{
		"name":        "Speedrunners",
		"description": "Any% only",
		"hashtags":    []string{"speedrun"},
	}, cookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var community models.Community
	require.NoError(t, json.Unmarshal(data, &community))

	resp, data = ts.request(t, http.MethodPost, fmt.Sprintf("/api/communities/%d/leave", community.ID), nil, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeNoSuccessor, decodeError(t, data).Code)

	resp, data = ts.request(t, http.MethodGet, "/api/communities/mine", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Speedrunners")
}

func TestZepchatVoting(t *testing.T) {
	ts := newTestServer(t)
	author := ts.createUser(t, "author", false)
	voter := ts.createUser(t, "voter", false)
	authorCookie := userSession(ts.tokenFor(t, author, credentials.RoleUser))
	voterCookie := userSession(ts.tokenFor(t, voter, credentials.RoleUser))

	resp, data := ts.request(t, http.MethodPost, "/api/zepchats", fiber.Map{
		"heading": "Best starter class?",
		"content": "Looking for tips.",
		"tags":    []string{"rpg"},
	}, authorCookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var zep models.Zepchat
	require.NoError(t, json.Unmarshal(data, &zep))

	votePath := fmt.Sprintf("/api/zepchats/%d/vote", zep.ID)

	resp, data = ts.request(t, http.MethodPost, votePath, fiber.Map{"voteType": "sideways"}, voterCookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeInvalidVoteType, decodeError(t, data).Code)

	resp, data = ts.request(t, http.MethodPost, votePath, fiber.Map{"voteType": models.VoteUp}, voterCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var tally models.VoteTally
	require.NoError(t, json.Unmarshal(data, &tally))
	assert.Equal(t, 1, tally.UpVotes)
	assert.Equal(t, []uint{voter.ID}, tally.UpVoters)

	resp, data = ts.request(t, http.MethodPost, votePath, fiber.Map{"voteType": models.VoteDown}, voterCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	tally = models.VoteTally{}
	require.NoError(t, json.Unmarshal(data, &tally))
	assert.Equal(t, 0, tally.UpVotes)
	assert.Equal(t, 1, tally.DownVotes)

	resp, data = ts.request(t, http.MethodPost, fmt.Sprintf("/api/zepchats/%d/replies", zep.ID),
		fiber.Map{"content": "Try the ranger."}, voterCookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = ts.request(t, http.MethodDelete, fmt.Sprintf("/api/zepchats/%d", zep.ID), nil, voterCookie)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(data))
}

func TestAdminRoutesRequireAdminSession(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createUser(t, "warden", true)
	player := ts.createUser(t, "player", false)

	// A user session is not accepted on admin routes, even for an admin account.
	resp, _ := ts.request(t, http.MethodGet, "/api/admin/users", nil, userSession(ts.tokenFor(t, admin, credentials.RoleUser)))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data := ts.request(t, http.MethodGet, "/api/admin/users", nil, adminSession(ts.tokenFor(t, admin, credentials.RoleUser)))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid token role", decodeError(t, data).Error)

	resp, _ = ts.request(t, http.MethodPost, "/api/admin/login", fiber.Map{
		"email":    "player@example.com",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data = ts.request(t, http.MethodPost, "/api/admin/login", fiber.Map{
		"email":    "warden@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	cookie := responseCookie(resp, adminCookie)
	require.NotNil(t, cookie)

	resp, data = ts.request(t, http.MethodGet, "/api/admin/users", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Contains(t, string(data), "player")

	resp, data = ts.request(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/block", player.ID), nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var blocked models.User
	require.NoError(t, ts.db.First(&blocked, player.ID).Error)
	assert.True(t, blocked.IsBlocked)

	// Demoted admins lose access on the next request.
	require.NoError(t, ts.db.Model(admin).Update("is_admin", false).Error)
	resp, data = ts.request(t, http.MethodGet, "/api/admin/users", nil, cookie)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Admin access required", decodeError(t, data).Error)
}

func TestReportsAndTickets(t *testing.T) {
	ts := newTestServer(t)
	reporter := ts.createUser(t, "reporter", false)
	target := ts.createUser(t, "griefer", false)
	cookie := userSession(ts.tokenFor(t, reporter, credentials.RoleUser))

	resp, data := ts.request(t, http.MethodPost, fmt.Sprintf("/api/reports/users/%d", target.ID),
		fiber.Map{"reason": "Spamming lobby"}, cookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = ts.request(t, http.MethodPost, "/api/tickets", fiber.Map{
		"subject":     "Lost items",
		"description": "My inventory disappeared after the patch.",
	}, cookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = ts.request(t, http.MethodGet, "/api/tickets/me", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Lost items")
}

func TestFeatureFlagDisablesRoute(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config, _ *Deps) {
		cfg.FeatureFlags = "ai_chat=false"
	})
	u := ts.createUser(t, "curious", false)

	resp, data := ts.request(t, http.MethodPost, "/api/ai/chat", fiber.Map{"prompt": "hi"},
		userSession(ts.tokenFor(t, u, credentials.RoleUser)))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Feature not available", decodeError(t, data).Error)
}

func TestAIChat(t *testing.T) {
	var gotPrompt string
	ts := newTestServer(t, func(_ *config.Config, deps *Deps) {
		deps.AI = &chatModelStub{generateFn: func(_ context.Context, prompt string) (string, error) {
			gotPrompt = prompt
			return "Try parrying.", nil
		}}
	})
	u := ts.createUser(t, "asker", false)
	cookie := userSession(ts.tokenFor(t, u, credentials.RoleUser))

	resp, data := ts.request(t, http.MethodPost, "/api/ai/chat", fiber.Map{"prompt": "  How do I beat the boss?  "}, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.JSONEq(t, `{"reply":"Try parrying."}`, string(data))
	assert.Equal(t, "How do I beat the boss?", gotPrompt)

	resp, data = ts.request(t, http.MethodPost, "/api/ai/chat", fiber.Map{"prompt": "   "}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, decodeError(t, data).Code)
}

func TestLocation(t *testing.T) {
	t.Run("unconfigured index answers 503", func(t *testing.T) {
		ts := newTestServer(t)
		u := ts.createUser(t, "nomad", false)

		resp, data := ts.request(t, http.MethodPost, "/api/location", fiber.Map{"longitude": 2.35, "latitude": 48.85},
			userSession(ts.tokenFor(t, u, credentials.RoleUser)))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, models.CodeServiceUnavailable, decodeError(t, data).Code)
	})

	t.Run("nearby players exclude friends", func(t *testing.T) {
		index := &locationIndexStub{points: map[uint][2]float64{}}
		ts := newTestServer(t, func(_ *config.Config, deps *Deps) {
			deps.Locations = index
		})
		me := ts.createUser(t, "me", false)
		friend := ts.createUser(t, "buddy", false)
		stranger := ts.createUser(t, "stranger", false)
		meCookie := userSession(ts.tokenFor(t, me, credentials.RoleUser))
		friendCookie := userSession(ts.tokenFor(t, friend, credentials.RoleUser))
		strangerCookie := userSession(ts.tokenFor(t, stranger, credentials.RoleUser))

		resp, _ := ts.request(t, http.MethodPost, fmt.Sprintf("/api/friends/%d", friend.ID), nil, meCookie)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		for _, c := range []*http.Cookie{meCookie, friendCookie, strangerCookie} {
			resp, data := ts.request(t, http.MethodPost, "/api/location", fiber.Map{"longitude": 2.35, "latitude": 48.85}, c)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		}

		resp, data := ts.request(t, http.MethodGet, "/api/location/nearby?radius_km=10", nil, meCookie)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		var users []models.UserSummary
		require.NoError(t, json.Unmarshal(data, &users))
		require.Len(t, users, 1)
		assert.Equal(t, stranger.ID, users[0].ID)

		resp, _ = ts.request(t, http.MethodPost, "/api/location", fiber.Map{"longitude": 200, "latitude": 0}, meCookie)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = ts.request(t, http.MethodGet, "/api/location/nearby?radius_km=far", nil, meCookie)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
