package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Exchanges ExchangesConfig
	Session   SessionConfig
	Archive   ArchiveConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port           string
	Environment    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// AllowedOrigins may call the API with the session cookie. Empty means
	// same-origin only.
	AllowedOrigins []string
}

// ExchangesConfig controls outbound exchange traffic.
type ExchangesConfig struct {
	RequestTimeout time.Duration
	RetryAttempts  int
	// EndpointsFile optionally overrides the built-in endpoint tables (YAML).
	EndpointsFile string
}

type SessionConfig struct {
	TTL        time.Duration
	MaxCost    int64
	CookieName string
}

// ArchiveConfig configures the optional ClickHouse fill archive.
type ArchiveConfig struct {
	Enabled       bool
	RetentionDays int
	// AutoMigrate applies MigrationsURL at startup.
	AutoMigrate   bool
	MigrationsURL string
	ClickHouse    ClickhouseConfig
}

type ClickhouseConfig struct {
	Port     int
	Host     string
	Database string
	Username string
	Password string
	Debug    bool
}

type SchedulerConfig struct {
	StatsSpec     string
	RetentionSpec string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", ":8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),
		},
		Exchanges: ExchangesConfig{
			RequestTimeout: getDurationEnv("EXCHANGE_REQUEST_TIMEOUT", 30*time.Second),
			RetryAttempts:  getIntEnv("EXCHANGE_RETRY_ATTEMPTS", 3),
			EndpointsFile:  getEnv("EXCHANGES_CONFIG", ""),
		},
		Session: SessionConfig{
			TTL:        getDurationEnv("SESSION_TTL", 12*time.Hour),
			MaxCost:    int64(getIntEnv("SESSION_MAX_COST", 1<<20)),
			CookieName: getEnv("SESSION_COOKIE", "tradebook_session"),
		},
		Archive: ArchiveConfig{
			Enabled:       getBoolEnv("ARCHIVE_ENABLED", false),
			RetentionDays: getIntEnv("ARCHIVE_RETENTION_DAYS", 365),
			AutoMigrate:   getBoolEnv("ARCHIVE_AUTO_MIGRATE", false),
			MigrationsURL: getEnv("ARCHIVE_MIGRATIONS_URL", "file://migrations/clickhouse"),
			ClickHouse: ClickhouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getIntEnv("CLICKHOUSE_PORT", 9000),
				Database: getEnv("CLICKHOUSE_DATABASE", "tradebook"),
				Username: getEnv("CLICKHOUSE_USERNAME", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
				Debug:    getBoolEnv("CLICKHOUSE_DEBUG", false),
			},
		},
		Scheduler: SchedulerConfig{
			StatsSpec:     getEnv("SCHEDULER_STATS_SPEC", "0 */15 * * * *"),
			RetentionSpec: getEnv("SCHEDULER_RETENTION_SPEC", "0 0 2 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would break request handling at runtime.
func (c *Config) Validate() error {
	if c.Exchanges.RequestTimeout <= 0 {
		return fmt.Errorf("EXCHANGE_REQUEST_TIMEOUT must be positive, got %s", c.Exchanges.RequestTimeout)
	}
	if c.Exchanges.RetryAttempts < 1 {
		return fmt.Errorf("EXCHANGE_RETRY_ATTEMPTS must be at least 1, got %d", c.Exchanges.RetryAttempts)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	if c.Archive.Enabled && c.Archive.RetentionDays < 1 {
		return fmt.Errorf("ARCHIVE_RETENTION_DAYS must be at least 1, got %d", c.Archive.RetentionDays)
	}
	return nil
}

func (c *ClickhouseConfig) ConnectionString() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s?debug=%t",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Debug)
}

// Helper function to get environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping blank entries.
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
