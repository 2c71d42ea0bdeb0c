// Package bootstrap wires the process-level dependencies shared by the
// server and the maintenance commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"zephyr/internal/cache"
	"zephyr/internal/config"
	"zephyr/internal/credentials"
	"zephyr/internal/database"
	"zephyr/internal/middleware"
	"zephyr/internal/models"
	"zephyr/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty development database with demo data.
	SeedDemo bool
}

// InitRuntime connects to the database and Redis, then applies development
// bootstrapping. The returned Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	r := cache.Connect(ctx, cfg.RedisURL)

	if err := ensureDevAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	if opts.SeedDemo && isDevelopment(cfg) {
		if err := seedIfEmpty(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

func isDevelopment(cfg *config.Config) bool {
	return cfg != nil && strings.EqualFold(cfg.Env, "development")
}

// ensureDevAdmin creates or promotes the configured development admin.
func ensureDevAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if db == nil || !isDevelopment(cfg) || !cfg.DevBootstrapAdmin {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.DevAdminEmail))
	if email == "" {
		email = "admin@zephyr.local"
	}
	if cfg.DevAdminPassword == "" {
		return errors.New("DEV_ADMIN_PASSWORD must be set when DEV_BOOTSTRAP_ADMIN is enabled")
	}
	hash, err := credentials.HashPassword(cfg.DevAdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admin models.User
		findErr := tx.Where("email = ?", email).First(&admin).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			admin = models.User{
				Username:    "zephyr_admin",
				DisplayName: "Zephyr Admin",
				Email:       email,
				Password:    hash,
				Status:      models.UserStatusOnline,
				IsAdmin:     true,
			}
			return tx.Create(&admin).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&admin).Updates(map[string]any{
				"is_admin":   true,
				"is_blocked": false,
				"password":   hash,
			}).Error
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development admin ensured", slog.String("email", email))
	return nil
}

func seedIfEmpty(ctx context.Context, db *gorm.DB) error {
	var users int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	// The development admin alone does not count as seeded data.
	if users > 1 {
		return nil
	}
	_, err := seed.NewSeeder(db).WithLogger(middleware.Logger).Run(ctx, seed.DefaultOptions())
	return err
}
