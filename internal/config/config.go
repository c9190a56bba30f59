// Package config loads service configuration from defaults, an optional
// config file, a .env file and LAB_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LAB_SERVER_ADDR.
const EnvPrefix = "LAB"

// Config holds all configuration for the service.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Scheduler  SchedulerConfig
	Executor   ExecutorConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// UseMemory keeps everything in process. Postgres, Redis, ClickHouse
	// and Kafka settings are ignored.
	UseMemory bool
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	DSN string
}

// ClickHouseConfig holds ClickHouse settings. An empty DSN disables the
// analytics store and run summaries stay in memory.
type ClickHouseConfig struct {
	DSN string
}

// RedisConfig holds Redis settings for progress and the shared limiter.
type RedisConfig struct {
	URL         string
	ProgressTTL time.Duration
}

// KafkaConfig holds run queue settings. No brokers means an in-process queue.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// SchedulerConfig holds worker pool and throttle settings.
type SchedulerConfig struct {
	Workers         int
	StartsPerSecond int
	UseRedisLimiter bool
	QueueCapacity   int
	StaleRunAfter   time.Duration // running rows older than this are failed on startup
}

// ExecutorConfig holds run loop settings.
type ExecutorConfig struct {
	SnapshotEvery int
	YieldEvery    int
	YieldPause    time.Duration
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration. path may be empty; a missing .env is ignored.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be >= 1, got %d", c.Scheduler.Workers)
	}
	if c.Scheduler.StartsPerSecond <= 0 {
		return fmt.Errorf("scheduler.startsPerSecond must be > 0, got %d", c.Scheduler.StartsPerSecond)
	}
	if c.Executor.SnapshotEvery < 1 {
		return fmt.Errorf("executor.snapshotEvery must be >= 1, got %d", c.Executor.SnapshotEvery)
	}
	if !c.Storage.UseMemory && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required unless storage.useMemory is set")
	}
	if c.Scheduler.UseRedisLimiter && c.Redis.URL == "" {
		return errors.New("redis.url is required for the redis limiter")
	}
	return nil
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "15s")
	v.SetDefault("server.corsOrigins", []string{"*"})

	v.SetDefault("storage.useMemory", true)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("clickhouse.dsn", "")

	// Redis defaults
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.progressTTL", "1h")

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "simulation-runs")
	v.SetDefault("kafka.groupID", "btc-scenario-lab-scheduler")

	// Scheduler defaults
	v.SetDefault("scheduler.workers", 2)
	v.SetDefault("scheduler.startsPerSecond", 5)
	v.SetDefault("scheduler.useRedisLimiter", false)
	v.SetDefault("scheduler.queueCapacity", 256)
	v.SetDefault("scheduler.staleRunAfter", "10m")

	// Executor defaults
	v.SetDefault("executor.snapshotEvery", 10)
	v.SetDefault("executor.yieldEvery", 100)
	v.SetDefault("executor.yieldPause", "0s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
