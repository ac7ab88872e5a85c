package database

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showcase/internal/platform/config"
)

func TestOpen_EmptyDSN(t *testing.T) {
	db, err := Open(context.Background(), config.DatabaseConfig{Driver: config.DriverPGX})
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(context.Background(), config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    "file::memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestOpen_SQLiteFileUsesWALPool(t *testing.T) {
	db, err := Open(context.Background(), config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "cache.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, sqliteMaxConns, db.Stats().MaxOpenConnections)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 10000, timeout)
}

func TestSQLiteDSN(t *testing.T) {
	t.Run("adds pragmas and immediate locking", func(t *testing.T) {
		u, err := url.Parse(sqliteDSN("file:cache.db"))
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, sqlitePragmas, q["_pragma"])
		assert.Equal(t, "immediate", q.Get("_txlock"))
	})

	t.Run("keeps operator pragmas", func(t *testing.T) {
		u, err := url.Parse(sqliteDSN("file:cache.db?_pragma=busy_timeout(500)&_txlock=deferred"))
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, []string{"busy_timeout(500)"}, q["_pragma"])
		assert.Equal(t, "deferred", q.Get("_txlock"))
	})
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "sqlite", Dialect(config.DriverSQLite))
	assert.Equal(t, "postgres", Dialect(config.DriverPGX))
	assert.Equal(t, "postgres", Dialect(config.DriverPostgres))
}
