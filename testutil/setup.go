// Package testutil builds throwaway infrastructure for package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/kasuganosora/combatcore/cache"
	"github.com/kasuganosora/combatcore/config"
	dbadapter "github.com/kasuganosora/combatcore/db"
	"github.com/kasuganosora/combatcore/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB opens a private in-memory SQLite database and runs
// AutoMigrate. Each call gets its own database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SetupTestCache creates an in-process store and pub/sub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Store, cache.PubSub) {
	t.Helper()
	cfg := cache.CacheConfig{}
	s, err := cache.NewStore(cfg)
	require.NoError(t, err, "SetupTestCache: NewStore")
	t.Cleanup(func() { _ = s.Close() })
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return s, ps
}
