package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"zephyr/internal/config"
	"zephyr/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes accepted by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan says which schema steps run for a configuration.
type SchemaPlan struct {
	Mode        string
	Env         string
	SQL         bool
	AutoMigrate bool
}

// SchemaStatus is a SchemaPlan plus the migration ledger state.
type SchemaStatus struct {
	SchemaPlan
	Applied []int
	Pending []Migration
}

func sharedEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema resolves DB_SCHEMA_MODE against the environment. AutoMigrate never
// runs implicitly outside development; auto mode there needs an explicit opt-in.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)), Env: cfg.Env}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	shared := sharedEnv(cfg.Env)

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeHybrid:
		plan.SQL, plan.AutoMigrate = true, !shared
	case SchemaModeAuto:
		if shared && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=auto in %q requires DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.AutoMigrate = true
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// ApplySchema brings the database up to date according to the configured plan.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		n, err := DefaultMigrator(db).Up(ctx)
		if err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		middleware.Logger.Info("SQL migrations finished", slog.Int("applied", n))
	}

	if plan.AutoMigrate {
		if sharedEnv(plan.Env) {
			middleware.Logger.Warn("AutoMigrate enabled in a shared environment", slog.String("env", plan.Env))
		}
		middleware.Logger.Info("Running AutoMigrate", slog.String("mode", plan.Mode))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the plan and, when SQL migrations are in play, the ledger.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan}
	if !plan.SQL {
		return status, nil
	}

	m := DefaultMigrator(db)
	if status.Applied, err = m.Applied(ctx); err != nil {
		return nil, err
	}
	if status.Pending, err = m.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}
