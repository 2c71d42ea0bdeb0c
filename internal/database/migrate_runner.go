package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"zephyr/internal/middleware"

	"gorm.io/gorm"
)

// appliedMigration is one row of the schema_migrations ledger.
type appliedMigration struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	AppliedAt time.Time
}

func (appliedMigration) TableName() string { return "schema_migrations" }

// Migrator applies versioned SQL migrations and keeps schema_migrations in step.
// Each migration and its ledger row are written in one transaction.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator builds a Migrator over the given migrations, which must be sorted by version.
func NewMigrator(db *gorm.DB, migrations []Migration) *Migrator {
	return &Migrator{db: db, migrations: migrations}
}

// DefaultMigrator runs the migrations embedded in the binary.
func DefaultMigrator(db *gorm.DB) *Migrator {
	return NewMigrator(db, migrations)
}

func (m *Migrator) ensureLedger(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&appliedMigration{}); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

// Applied lists recorded versions in ascending order.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	if err := m.ensureLedger(ctx); err != nil {
		return nil, err
	}
	var versions []int
	err := m.db.WithContext(ctx).Model(&appliedMigration{}).Order("version").Pluck("version", &versions).Error
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return versions, nil
}

// Pending returns the registered migrations that have no ledger row yet.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkKnownVersions(applied, m.migrations); err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range m.migrations {
		if !slices.Contains(applied, mig.Version) {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration and reports how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}
	for i, mig := range pending {
		middleware.Logger.Info("Applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.UpScript).Error; err != nil {
				return err
			}
			return tx.Create(&appliedMigration{Version: mig.Version, Name: mig.Name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return i, fmt.Errorf("apply %s: %w", mig.String(), err)
		}
	}
	return len(pending), nil
}

// Down reverts one applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	idx := slices.IndexFunc(m.migrations, func(mig Migration) bool { return mig.Version == version })
	if idx < 0 {
		return fmt.Errorf("migration %06d is not registered", version)
	}
	mig := m.migrations[idx]

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %s has not been applied", mig.String())
	}

	middleware.Logger.Info("Rolling back migration", slog.String("migration", mig.String()))
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.DownScript).Error; err != nil {
			return err
		}
		return tx.Where("version = ?", version).Delete(&appliedMigration{}).Error
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", mig.String(), err)
	}
	return nil
}

// checkKnownVersions fails when the ledger holds versions this binary does not ship,
// which means the database was migrated by a newer or diverged build.
func checkKnownVersions(applied []int, registered []Migration) error {
	var unknown []string
	for _, v := range applied {
		if !slices.ContainsFunc(registered, func(mig Migration) bool { return mig.Version == v }) {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("schema_migrations has versions unknown to this build: %s", strings.Join(unknown, ", "))
}
