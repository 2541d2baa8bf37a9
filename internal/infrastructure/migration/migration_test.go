package migration

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orris-inc/checkout/internal/domain/payment"
	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
	"github.com/orris-inc/checkout/internal/infrastructure/repository"
	"github.com/orris-inc/checkout/internal/shared/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// exerciseSchema checks the repositories work against the migrated tables.
func exerciseSchema(t *testing.T, db *gorm.DB) {
	ctx := context.Background()

	kv := repository.NewKVStorage(db)
	require.NoError(t, kv.Set(ctx, "slot", "value", time.Minute))
	value, ok, err := kv.Get(ctx, "slot")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", value)

	journal := repository.NewAttemptJournal(db)
	require.NoError(t, journal.Append(ctx, &payment.Transition{
		RequestID: "req_1", ProcessID: "p1",
		From: vo.StateInit, To: vo.StateCustomerResolved,
		Snapshot: map[string]any{"k": "v"},
	}))
	list, err := journal.ListByProcessID(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGormAutoMigrateStrategy(t *testing.T) {
	db := setupTestDB(t)
	strategy := NewGormAutoMigrateStrategy(logger.NewNopLogger())

	require.NoError(t, strategy.Migrate(db))
	assert.Equal(t, "gorm_auto_migrate", strategy.GetName())
	assert.True(t, db.Migrator().HasTable("local_storage"))
	assert.True(t, db.Migrator().HasTable("checkout_attempts"))

	exerciseSchema(t, db)
}

func TestGooseStrategy_EmbeddedSQLite(t *testing.T) {
	db := setupTestDB(t)
	strategy := NewGooseStrategy("sqlite", "", logger.NewNopLogger()).(*GooseStrategy)

	require.NoError(t, strategy.Migrate(db))
	// a second run is a no-op
	require.NoError(t, strategy.Migrate(db))

	version, err := strategy.GetVersion(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	exerciseSchema(t, db)

	require.NoError(t, strategy.MigrateDown(db, 1))
	assert.False(t, db.Migrator().HasTable("checkout_attempts"))
}

func TestGooseStrategy_CreateNeedsPath(t *testing.T) {
	strategy := NewGooseStrategy("sqlite", "", logger.NewNopLogger()).(*GooseStrategy)
	assert.Error(t, strategy.Create("add_outcome"))
}

func TestEmbeddedScripts(t *testing.T) {
	for _, dir := range []string{gooseSQLiteDir, gooseMySQLDir, migrateDir} {
		entries, err := fs.ReadDir(scriptsFS, dir)
		require.NoError(t, err, dir)
		assert.NotEmpty(t, entries, dir)
	}

	up, err := fs.ReadFile(scriptsFS, migrateDir+"/000001_create_checkout_tables.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "checkout_attempts")
}

func TestNewManager_PicksStrategy(t *testing.T) {
	log := logger.NewNopLogger()

	tests := []struct {
		env, driver, want string
	}{
		{"development", "sqlite", "gorm_auto_migrate"},
		{"production", "sqlite", "goose"},
		{"production", "mysql", "golang_migrate"},
		{"test", "", "goose"},
	}
	for _, tt := range tests {
		m := NewManager(tt.env, tt.driver, log)
		assert.Equal(t, tt.want, m.GetStrategy().GetName(), tt.env+"/"+tt.driver)
		assert.NotEqual(t, "Unknown migration strategy", m.GetStrategyInfo()["description"])
	}
}

func TestManager_Migrate(t *testing.T) {
	db := setupTestDB(t)
	m := NewManagerWithStrategy(NewGormAutoMigrateStrategy(logger.NewNopLogger()), logger.NewNopLogger())

	require.NoError(t, m.Migrate(db, AutoMigrateModels()...))
	exerciseSchema(t, db)
}

func TestGenerator_CreateMigration(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, logger.NewNopLogger())
	g.now = func() time.Time { return time.Date(2025, 4, 1, 8, 30, 0, 0, time.UTC) }

	up, down, err := g.CreateMigration("add_outcome")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(up, "20250401083000_add_outcome.up.sql"))
	assert.True(t, strings.HasSuffix(down, "20250401083000_add_outcome.down.sql"))

	content, err := os.ReadFile(up)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Migration: add_outcome")

	_, _, err = g.CreateMigration("")
	assert.Error(t, err)
}

func TestGolangMigrateStrategy_Source(t *testing.T) {
	embedded := NewGolangMigrateStrategy("", logger.NewNopLogger()).(*GolangMigrateStrategy)
	assert.Equal(t, "embedded:"+migrateDir, embedded.source())

	onDisk := NewGolangMigrateStrategy("/srv/migrations", logger.NewNopLogger()).(*GolangMigrateStrategy)
	assert.Equal(t, "/srv/migrations", onDisk.source())
	assert.Equal(t, "golang_migrate", onDisk.GetName())
}
