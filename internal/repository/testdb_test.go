package repository

import (
	"fmt"
	"testing"
	"time"

	"zephyr/internal/database"
	"zephyr/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{SkipDefaultTransaction: true, Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func seedUsers(t *testing.T, db *gorm.DB, n int) []*models.User {
	t.Helper()
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		u := &models.User{
			Username:    fmt.Sprintf("user%d", i+1),
			DisplayName: fmt.Sprintf("User %d", i+1),
			Email:       fmt.Sprintf("user%d@example.com", i+1),
			Password:    "x",
			Status:      models.UserStatusOnline,
			JoinedAt:    time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.Create(u).Error)
		users = append(users, u)
	}
	return users
}
