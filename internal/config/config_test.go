package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Port)
	require.Equal(t, 30*time.Second, cfg.Exchanges.RequestTimeout)
	require.Equal(t, 3, cfg.Exchanges.RetryAttempts)
	require.False(t, cfg.Archive.Enabled)
	require.False(t, cfg.Archive.AutoMigrate)
	require.Equal(t, "file://migrations/clickhouse", cfg.Archive.MigrationsURL)
	require.Equal(t, "tradebook_session", cfg.Session.CookieName)
	require.Empty(t, cfg.Server.AllowedOrigins)
}

func TestLoadAllowedOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://localhost:3000, ,https://desk.example.com ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"http://localhost:3000", "https://desk.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EXCHANGE_REQUEST_TIMEOUT", "5s")
	t.Setenv("EXCHANGE_RETRY_ATTEMPTS", "1")
	t.Setenv("ARCHIVE_ENABLED", "true")
	t.Setenv("CLICKHOUSE_PORT", "9440")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.Exchanges.RequestTimeout)
	require.Equal(t, 1, cfg.Exchanges.RetryAttempts)
	require.True(t, cfg.Archive.Enabled)
	require.Equal(t, 9440, cfg.Archive.ClickHouse.Port)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("EXCHANGE_RETRY_ATTEMPTS", "many")
	t.Setenv("SESSION_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Exchanges.RetryAttempts)
	require.Equal(t, 12*time.Hour, cfg.Session.TTL)
}

func TestValidateRejectsZeroRetries(t *testing.T) {
	t.Setenv("EXCHANGE_RETRY_ATTEMPTS", "0")

	_, err := Load()
	require.ErrorContains(t, err, "EXCHANGE_RETRY_ATTEMPTS")
}
