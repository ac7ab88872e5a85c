// Package config loads process configuration: defaults, then an optional YAML
// file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the YAML file path.
const EnvConfigPath = "SHOWCASE_CONFIG"

// Persist modes for a sync run.
const (
	PersistTransaction = "transaction"
	PersistSequential  = "sequential"
)

// Database drivers.
const (
	DriverPGX      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Rate-limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the root configuration.
type Config struct {
	Server    Server          `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Source    SourceConfig    `yaml:"source"`
	Sync      SyncConfig      `yaml:"sync"`
	Notify    NotifyConfig    `yaml:"notify"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	Environment     string        `yaml:"environment"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	AdminJWTKey     string        `yaml:"admin_jwt_key"`
	AdminJWTIssuer  string        `yaml:"admin_jwt_issuer"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the SQL backend. An empty DSN keeps everything in memory.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RedisConfig configures the shared Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	Channel      string        `yaml:"channel"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig configures change-event forwarding. No brokers disables it.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
}

// SourceConfig configures the upstream catalogue client.
type SourceConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Mailto          string        `yaml:"mailto"`
	UserAgent       string        `yaml:"user_agent"`
	Timeout         time.Duration `yaml:"timeout"`
	PageSize        int           `yaml:"page_size"`
	MaxPages        int           `yaml:"max_pages"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// SyncConfig configures the orchestrator and scheduler.
type SyncConfig struct {
	RetryAttempts       int           `yaml:"retry_attempts"`
	RetryInterval       time.Duration `yaml:"retry_interval"`
	RunTimeout          time.Duration `yaml:"run_timeout"`
	PersistMode         string        `yaml:"persist_mode"`
	ScheduleInterval    time.Duration `yaml:"schedule_interval"`
	ScheduleConcurrency int           `yaml:"schedule_concurrency"`
}

// NotifyConfig configures the push transports.
type NotifyConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SubscriberBuffer  int           `yaml:"subscriber_buffer"`
}

// RateLimitConfig holds per-class request budgets per window.
type RateLimitConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Backend     string        `yaml:"backend"`
	Window      time.Duration `yaml:"window"`
	SyncLimit   int           `yaml:"sync_limit"`
	ReadLimit   int           `yaml:"read_limit"`
	StreamLimit int           `yaml:"stream_limit"`
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			Environment:     "dev",
			LogLevel:        "info",
			LogFormat:       "text",
			AdminJWTKey:     "dev-secret-key-change-in-production",
			AdminJWTIssuer:  "showcase",
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverPGX,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Channel:      "showcase:events",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:             "showcase.profile-changes",
			Partitions:        1,
			ReplicationFactor: 1,
		},
		Source: SourceConfig{
			BaseURL:         "https://api.openalex.org",
			UserAgent:       "showcase/1.0",
			Timeout:         10 * time.Second,
			PageSize:        200,
			MaxPages:        10,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Sync: SyncConfig{
			RetryAttempts:       3,
			RetryInterval:       500 * time.Millisecond,
			RunTimeout:          2 * time.Minute,
			PersistMode:         PersistTransaction,
			ScheduleConcurrency: 4,
		},
		Notify: NotifyConfig{
			HeartbeatInterval: 30 * time.Second,
			SubscriberBuffer:  16,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Backend:     BackendMemory,
			Window:      time.Minute,
			SyncLimit:   10,
			ReadLimit:   120,
			StreamLimit: 20,
		},
	}
}

// Load builds the configuration. path may be empty; when it is, the path in
// SHOWCASE_CONFIG is used if set.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPGX, DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	switch c.Sync.PersistMode {
	case PersistTransaction, PersistSequential:
	default:
		errs = append(errs, fmt.Errorf("sync.persist_mode: unknown mode %q", c.Sync.PersistMode))
	}
	switch c.RateLimit.Backend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("rate_limit.backend: unknown backend %q", c.RateLimit.Backend))
	}
	if c.RateLimit.Backend == BackendRedis && c.RateLimit.Enabled && c.Redis.URL == "" {
		errs = append(errs, errors.New("rate_limit.backend: redis requires redis.url"))
	}
	if c.Source.BaseURL == "" {
		errs = append(errs, errors.New("source.base_url: required"))
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, errors.New("source.timeout: must be positive"))
	}
	if c.Source.PageSize <= 0 || c.Source.PageSize > 200 {
		errs = append(errs, errors.New("source.page_size: must be between 1 and 200"))
	}
	if c.Source.MaxPages <= 0 {
		errs = append(errs, errors.New("source.max_pages: must be positive"))
	}
	if c.Sync.RetryAttempts < 0 {
		errs = append(errs, errors.New("sync.retry_attempts: must not be negative"))
	}
	if c.Sync.RunTimeout <= 0 {
		errs = append(errs, errors.New("sync.run_timeout: must be positive"))
	}
	if c.Sync.ScheduleInterval < 0 {
		errs = append(errs, errors.New("sync.schedule_interval: must not be negative"))
	}
	if c.Sync.ScheduleConcurrency <= 0 {
		errs = append(errs, errors.New("sync.schedule_concurrency: must be positive"))
	}
	if c.Notify.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("notify.heartbeat_interval: must be positive"))
	}
	if c.Notify.SubscriberBuffer <= 0 {
		errs = append(errs, errors.New("notify.subscriber_buffer: must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window: must be positive"))
	}
	if c.Server.Environment == "prod" && c.Server.AdminJWTKey == Default().Server.AdminJWTKey {
		errs = append(errs, errors.New("server.admin_jwt_key: the development key is not allowed in prod"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in the prod environment.
func (c Config) IsProduction() bool {
	return c.Server.Environment == "prod"
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("SHOWCASE_ADDR", &cfg.Server.Addr)
	str("SHOWCASE_ENV", &cfg.Server.Environment)
	str("SHOWCASE_LOG_LEVEL", &cfg.Server.LogLevel)
	str("SHOWCASE_LOG_FORMAT", &cfg.Server.LogFormat)
	str("SHOWCASE_ADMIN_JWT_KEY", &cfg.Server.AdminJWTKey)

	str("SHOWCASE_DB_DRIVER", &cfg.Database.Driver)
	str("DATABASE_URL", &cfg.Database.DSN)
	num("SHOWCASE_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	flag("SHOWCASE_DB_AUTO_MIGRATE", &cfg.Database.AutoMigrate)

	str("REDIS_URL", &cfg.Redis.URL)
	str("SHOWCASE_REDIS_CHANNEL", &cfg.Redis.Channel)

	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	str("SHOWCASE_KAFKA_TOPIC", &cfg.Kafka.Topic)

	str("SHOWCASE_SOURCE_BASE_URL", &cfg.Source.BaseURL)
	str("SHOWCASE_SOURCE_MAILTO", &cfg.Source.Mailto)
	dur("SHOWCASE_SOURCE_TIMEOUT", &cfg.Source.Timeout)
	num("SHOWCASE_SOURCE_PAGE_SIZE", &cfg.Source.PageSize)
	num("SHOWCASE_SOURCE_MAX_PAGES", &cfg.Source.MaxPages)

	num("SHOWCASE_SYNC_RETRY_ATTEMPTS", &cfg.Sync.RetryAttempts)
	dur("SHOWCASE_SYNC_RUN_TIMEOUT", &cfg.Sync.RunTimeout)
	str("SHOWCASE_SYNC_PERSIST_MODE", &cfg.Sync.PersistMode)
	dur("SHOWCASE_SYNC_SCHEDULE_INTERVAL", &cfg.Sync.ScheduleInterval)
	num("SHOWCASE_SYNC_SCHEDULE_CONCURRENCY", &cfg.Sync.ScheduleConcurrency)

	dur("SHOWCASE_HEARTBEAT_INTERVAL", &cfg.Notify.HeartbeatInterval)

	flag("SHOWCASE_RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	str("SHOWCASE_RATE_LIMIT_BACKEND", &cfg.RateLimit.Backend)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
