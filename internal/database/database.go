// Package database opens the Postgres connection and owns the Zephyr schema.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"zephyr/internal/config"
	"zephyr/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ConnectOptions tweak Connect for tooling that manages the schema itself.
type ConnectOptions struct {
	ApplySchema bool
}

// PostgresDSN renders the connection URL. Credentials are escaped, so passwords
// with spaces or '@' survive.
func PostgresDSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     net.JoinHostPort(cfg.DBHost, cfg.DBPort),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// Connect opens the database and applies the schema plan for cfg.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(PostgresDSN(cfg)), &gorm.Config{
		Logger:         NewGormLogger(middleware.Logger),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres %s/%s: %w", cfg.DBHost, cfg.DBName, err)
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, fmt.Errorf("configure pool: %w", err)
	}
	middleware.Logger.Info("Database connected", slog.String("host", cfg.DBHost), slog.String("db", cfg.DBName))

	if !opts.ApplySchema {
		return db, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := ApplySchema(ctx, db, cfg); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if n := cfg.DBMaxOpenConns; n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := cfg.DBMaxIdleConns; n > 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if m := cfg.DBConnMaxLifetimeMinutes; m > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(m) * time.Minute)
	}
	return nil
}
