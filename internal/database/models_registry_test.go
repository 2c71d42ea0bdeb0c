package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Every model AutoMigrate knows about must also be created by the SQL migrations,
// otherwise sql-only deployments miss a table.
func TestPersistentModels_CoveredBySQLMigrations(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	var up strings.Builder
	for _, m := range EmbeddedMigrations() {
		up.WriteString(m.UpScript)
	}

	seen := map[string]bool{}
	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		require.NoError(t, stmt.Parse(model))
		table := stmt.Schema.Table

		assert.False(t, seen[table], "%s registered twice", table)
		seen[table] = true
		assert.Contains(t, up.String(), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
	assert.True(t, seen["votes"])
	assert.True(t, seen["community_members"])
}
