package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the database connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config is the triage service configuration.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig

	// Triage-specific settings
	Triage struct {
		// Alarm intake stream (Redis Streams)
		Stream struct {
			Name      string // stream key, e.g. "windfleet:alarms"
			Group     string // consumer group name
			Consumer  string // consumer name within the group
			BatchSize int64  // messages read per XREADGROUP call
		}

		// Per-turbine recommendation cache
		Cache struct {
			KeyPrefix string // e.g. "windfleet:turbine:"
			KeySuffix string // e.g. ":recommendation"
			TTL       int    // seconds
		}

		// Snooze reconciliation
		ReconcileInterval int // seconds between reconciliation cycles
		SnoozeMinutes     int // default snooze duration for deferred recommendations
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "windfleet")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Triage.Stream.Name = getEnv("ALARM_STREAM", "windfleet:alarms")
	cfg.Triage.Stream.Group = getEnv("ALARM_STREAM_GROUP", "windfleet-triage")
	cfg.Triage.Stream.Consumer = getEnv("ALARM_STREAM_CONSUMER", "triage-1")
	cfg.Triage.Stream.BatchSize = int64(getEnvInt("ALARM_STREAM_BATCH", 10))

	cfg.Triage.Cache.KeyPrefix = getEnv("CACHE_TURBINE_PREFIX", "windfleet:turbine:")
	cfg.Triage.Cache.KeySuffix = ":recommendation"
	cfg.Triage.Cache.TTL = getEnvInt("CACHE_TTL", 300)

	cfg.Triage.ReconcileInterval = getEnvInt("RECONCILE_INTERVAL", 60)
	cfg.Triage.SnoozeMinutes = getEnvInt("SNOOZE_MINUTES", 20)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
