// Package server contains the HTTP handlers for Zephyr's API endpoints.
package server

import (
	"context"
	"fmt"
	"time"

	"zephyr/internal/aichat"
	"zephyr/internal/config"
	"zephyr/internal/credentials"
	"zephyr/internal/featureflags"
	"zephyr/internal/mailer"
	"zephyr/internal/middleware"
	"zephyr/internal/models"
	"zephyr/internal/notifications"
	"zephyr/internal/repository"
	"zephyr/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the outbound integrations the server talks to. Any nil field falls
// back to a client built from config, or leaves the dependent routes answering 503.
type Deps struct {
	Mailer    service.Mailer
	Media     service.MediaStore
	Locations service.LocationIndex
	AI        service.ChatModel
	Events    service.EventPublisher
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	notifier     *notifications.Notifier
	featureFlags *featureflags.Manager
	tokens       *credentials.TokenIssuer
	blacklist    *credentials.Blacklist
	userRepo     repository.UserRepository

	identity      *service.IdentityService
	friends       *service.FriendService
	chat          *service.ChatService
	communities   *service.CommunityService
	zepchats      *service.ZepchatService
	notifications *service.NotificationService
	reports       *service.ReportService
	admin         *service.AdminService
	location      *service.LocationService
	ai            *service.AIService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, deps Deps) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("config and database are required")
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("zephyr-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		tokens:         credentials.NewTokenIssuer(cfg.JWTSecret),
		blacklist:      credentials.NewBlacklist(redisClient),
	}

	// Keep the realtime publisher a true nil interface when Redis is down.
	var realtime service.RealtimePublisher
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		realtime = server.notifier
	}

	if deps.Mailer == nil {
		deps.Mailer = mailer.NewClient(mailer.Config{
			APIKey:      cfg.BrevoAPIKey,
			FromEmail:   cfg.MailFromEmail,
			FromName:    cfg.MailFromName,
			MaxFailures: cfg.BreakerMaxFailure,
			Timeout:     time.Duration(cfg.BreakerTimeoutSec) * time.Second,
		})
	}
	if deps.AI == nil {
		deps.AI = aichat.NewClient(aichat.Config{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			QPS:         cfg.GeminiQPS,
			MaxFailures: cfg.BreakerMaxFailure,
			Timeout:     time.Duration(cfg.BreakerTimeoutSec) * time.Second,
		})
	}

	tx := repository.NewTransactor(db)
	users := repository.NewUserRepository(db)
	friends := repository.NewFriendRepository(db)
	chats := repository.NewChatRepository(db)
	communities := repository.NewCommunityRepository(db)
	moderation := repository.NewModerationRepository(db)
	server.userRepo = users

	server.notifications = service.NewNotificationService(repository.NewNotificationRepository(db), realtime)
	identity := service.NewIdentityService(users, repository.NewOTPRepository(db), tx, server.tokens, deps.Mailer).
		WithRevoker(server.blacklist).
		WithEvents(deps.Events)
	if deps.Media != nil {
		identity = identity.WithMedia(deps.Media)
	}
	server.identity = identity
	server.friends = service.NewFriendService(friends, users, chats, tx, server.notifications, deps.Events)
	server.chat = service.NewChatService(chats, friends, realtime, deps.Media)
	server.communities = service.NewCommunityService(communities, users, tx, server.notifications, realtime, deps.Media, deps.Events)
	server.zepchats = service.NewZepchatService(repository.NewZepchatRepository(db), repository.NewVoteRepository(db),
		users, tx, server.notifications, deps.Events)
	server.reports = service.NewReportService(moderation, users, communities)
	server.admin = service.NewAdminService(users, communities, moderation, tx, deps.Events)
	server.location = service.NewLocationService(deps.Locations, users, friends)
	server.ai = service.NewAIService(deps.AI)

	return server, nil
}

// SetupMiddleware installs the global chain. Order matters: CORS runs before the
// limiter so 429 responses still carry CORS headers, and preflights skip the limiter.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept",
		ExposeHeaders:    "X-Request-ID, X-Trace-ID, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	if s.config.GlobalRateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        s.config.GlobalRateLimit,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return models.RespondWithError(c, fiber.StatusTooManyRequests,
					models.NewAppError(models.CodeRateLimited, "Too many requests, please try again later."))
			},
		}))
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/check-exist", s.CheckExist)
	auth.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/resend-otp", middleware.RateLimit(s.redis, 3, 5*time.Minute, "resend_otp"), s.ResendOTP)
	auth.Post("/verify-otp", s.VerifyOTP)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/forgot-password", middleware.RateLimit(s.redis, 3, 10*time.Minute, "forgot_password"), s.ForgotPassword)
	auth.Post("/reset-password", s.ResetPassword)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Admin login is public; every other admin route needs the admin cookie.
	api.Post("/admin/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "admin_login"), s.AdminLogin)
	admin := api.Group("/admin", s.AdminRequired())
	admin.Post("/logout", s.AdminLogout)
	admin.Get("/users", s.AdminGetUsers)
	admin.Get("/users/:id", s.AdminGetUserInfo)
	admin.Patch("/users/:id/block", s.AdminBlockUser)
	admin.Patch("/users/:id/unblock", s.AdminUnblockUser)
	admin.Get("/communities", s.AdminGetCommunities)
	admin.Patch("/communities/:id/ban", s.AdminBanCommunity)
	admin.Patch("/communities/:id/unban", s.AdminUnbanCommunity)
	admin.Get("/reports", s.AdminGetReports)
	admin.Get("/community-reports", s.AdminGetCommunityReports)
	admin.Get("/tickets", s.AdminGetTickets)
	admin.Patch("/tickets/:id", s.AdminUpdateTicket)
	admin.Get("/feature-flags", s.GetFeatureFlags)

	protected := api.Group("", s.AuthRequired())

	users := protected.Group("/users")
	users.Get("/me", s.GetMe)
	users.Put("/me", s.UpdateProfile)
	users.Put("/me/password", s.ChangePassword)
	users.Put("/me/status", s.UpdateStatus)
	users.Post("/me/picture", middleware.RateLimit(s.redis, 10, 10*time.Minute, "profile_picture"), s.UploadProfilePicture)
	users.Get("/", s.ListUsers)

	friends := protected.Group("/friends")
	friends.Get("/", s.GetFriends)
	friends.Get("/global", s.GetGlobalFriends)
	friends.Get("/requests", s.GetFriendRequests)
	// Specific /status route before generic /:userId
	friends.Get("/status/:userId", s.GetFriendshipStatus)
	friends.Post("/:userId/accept", s.AcceptFriend)
	friends.Post("/:userId/reject", s.RejectFriend)
	friends.Post("/:userId", middleware.RateLimit(s.redis, 20, 5*time.Minute, "friend_request"), s.AddFriend)
	friends.Delete("/:userId", s.RemoveFriend)

	messages := protected.Group("/messages")
	messages.Post("/attachments", middleware.RateLimit(s.redis, 20, 10*time.Minute, "attachments"), s.UploadAttachment)
	messages.Post("/:userId", middleware.RateLimit(s.redis, 30, time.Minute, "send_message"), s.SendMessage)
	messages.Get("/:userId", s.FetchMessages)

	protected.Post("/reports/users/:userId", s.ReportUser)
	protected.Post("/tickets", s.CreateTicket)
	protected.Get("/tickets/me", s.GetMyTickets)

	protected.Get("/notifications", s.GetNotifications)
	protected.Delete("/notifications", s.ClearNotifications)

	protected.Post("/location", s.RequireFeature(featureNearbyFriends), s.SetLocation)
	protected.Get("/location/nearby", s.RequireFeature(featureNearbyFriends), s.FindNearbyFriends)

	protected.Post("/ai/chat", s.RequireFeature(featureAIChat),
		middleware.RateLimit(s.redis, 20, time.Minute, "ai_chat"), s.AIChat)

	communities := protected.Group("/communities")
	communities.Post("/", middleware.RateLimit(s.redis, 5, 10*time.Minute, "create_community"), s.CreateCommunity)
	communities.Get("/", s.GetCommunities)
	// Specific /mine route before generic /:id
	communities.Get("/mine", s.GetMyCommunities)
	communities.Get("/:id/members", s.GetCommunityMembers)
	communities.Post("/:id/members", s.AddCommunityMembers)
	communities.Delete("/:id/members/:userId", s.RemoveCommunityMember)
	communities.Post("/:id/join", s.JoinCommunity)
	communities.Post("/:id/leave", s.LeaveCommunity)
	communities.Post("/:id/admin/:userId", s.MakeCommunityAdmin)
	communities.Post("/:id/messages", middleware.RateLimit(s.redis, 30, time.Minute, "community_message"), s.SendCommunityMessage)
	communities.Get("/:id/messages", s.GetCommunityMessages)
	communities.Post("/:id/report", s.ReportCommunity)
	communities.Put("/:id", s.UpdateCommunity)
	communities.Get("/:id", s.GetCommunity)

	zepchats := protected.Group("/zepchats")
	zepchats.Post("/", middleware.RateLimit(s.redis, 5, 5*time.Minute, "create_zepchat"), s.CreateZepchat)
	zepchats.Get("/", s.ListZepchats)
	zepchats.Get("/mine", s.GetMyZepchats)
	zepchats.Post("/replies/:replyId/vote", s.VoteReply)
	zepchats.Post("/:id/vote", s.VoteZepchat)
	zepchats.Post("/:id/replies", middleware.RateLimit(s.redis, 10, time.Minute, "zep_reply"), s.PostReply)
	zepchats.Get("/:id/replies", s.GetReplies)
	zepchats.Put("/:id", s.UpdateZepchat)
	zepchats.Delete("/:id", s.DeleteZepchat)
	zepchats.Get("/:id", s.GetZepchat)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": "zephyr",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// NewApp builds a Fiber app with the error handler, middleware and routes attached.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Zephyr API",
		BodyLimit: s.bodyLimit(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) bodyLimit() int {
	mb := s.config.MediaMaxUploadMB
	if mb <= 0 {
		mb = 10
	}
	// Leave headroom for multipart framing around the file itself.
	return (mb + 1) * 1024 * 1024
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier != nil {
		// The socket relay lives outside this process; the subscriber keeps the
		// channels observable in the logs.
		err := s.notifier.Subscribe(s.shutdownCtx, func(m notifications.Message) {
			middleware.Logger.Debug("realtime event", "scope", m.Scope, "id", m.ID, "bytes", len(m.Payload))
		})
		if err != nil {
			middleware.Logger.Warn("realtime subscriber not started", "error", err)
		}
	}

	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
