package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, PersistTransaction, cfg.Sync.PersistMode)
	assert.Equal(t, 30*time.Second, cfg.Notify.HeartbeatInterval)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "showcase.yaml")
	yml := `
server:
  addr: ":9090"
database:
  driver: sqlite
  dsn: "file:showcase.db"
sync:
  persist_mode: sequential
  run_timeout: 45s
kafka:
  brokers: ["k1:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("SHOWCASE_ADDR", ":7070")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr, "env overrides file")
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, PersistSequential, cfg.Sync.PersistMode)
	assert.Equal(t, 45*time.Second, cfg.Sync.RunTimeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 200, cfg.Source.PageSize, "unset keys keep defaults")
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("SHOWCASE_SOURCE_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHOWCASE_SOURCE_TIMEOUT")
}

func TestValidate(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		cfg := Default()
		cfg.Database.Driver = "mysql"
		assert.ErrorContains(t, cfg.Validate(), "database.driver")
	})

	t.Run("unknown persist mode", func(t *testing.T) {
		cfg := Default()
		cfg.Sync.PersistMode = "eventually"
		assert.ErrorContains(t, cfg.Validate(), "sync.persist_mode")
	})

	t.Run("redis backend needs url", func(t *testing.T) {
		cfg := Default()
		cfg.RateLimit.Backend = BackendRedis
		assert.ErrorContains(t, cfg.Validate(), "redis.url")
	})

	t.Run("dev key rejected in prod", func(t *testing.T) {
		cfg := Default()
		cfg.Server.Environment = "prod"
		assert.ErrorContains(t, cfg.Validate(), "admin_jwt_key")
	})

	t.Run("page size bounded by upstream maximum", func(t *testing.T) {
		cfg := Default()
		cfg.Source.PageSize = 500
		assert.ErrorContains(t, cfg.Validate(), "source.page_size")
	})
}
