// Package testutil wires real repositories against an in-memory SQLite database.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestDB returns a migrated, isolated in-memory database. A single
// connection serialises access so the unique-index and ON CONFLICT paths
// behave the same as they do on a real server.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db, zap.NewNop()))
	return db
}

// NewTestRepositories returns the full repository set over NewTestDB.
func NewTestRepositories(t *testing.T) (*gorm.DB, *database.Repositories) {
	t.Helper()
	db := NewTestDB(t)
	return db, database.NewRepositories(db, zap.NewNop())
}
