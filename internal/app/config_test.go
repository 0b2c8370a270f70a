package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)

	require.Equal(t, time.Second, cfg.Queue.PollInterval)
	require.Equal(t, 2, cfg.Queue.Concurrency)
	require.Equal(t, 24*time.Hour, cfg.Queue.Retention)

	require.Equal(t, 30, cfg.Notifications.RetentionDays)
	require.Equal(t, "0 */6 * * *", cfg.Notifications.Cleanup.Expired)
	require.Equal(t, "@daily", cfg.Notifications.Cleanup.ReadAged)
	require.Equal(t, "@weekly", cfg.Notifications.Cleanup.Intensive)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.True(t, cfg.Monitoring.Health.Enabled)

	require.Equal(t, "talentpool", cfg.Auth.JWT.Issuer)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, 250*time.Millisecond, cfg.Queue.PollInterval)
	require.Equal(t, 4, cfg.Queue.Concurrency)
	require.Equal(t, 48*time.Hour, cfg.Queue.Retention)

	require.Equal(t, 45, cfg.Notifications.RetentionDays)
	require.Equal(t, "0 */3 * * *", cfg.Notifications.Cleanup.Expired)
	require.Equal(t, "30 2 * * *", cfg.Notifications.Cleanup.ReadAged)
	require.Equal(t, "0 4 * * 0", cfg.Notifications.Cleanup.Intensive)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "talentpool-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("TALENTPOOL_SERVER_PORT", "9001")
	t.Setenv("TALENTPOOL_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("TALENTPOOL_NOTIFICATIONS_RETENTION_DAYS", "14")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9001, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 14, cfg.Notifications.RetentionDays)
}

func TestConfigureLoggingDefaultsLevel(t *testing.T) {
	require.NoError(t, ConfigureLogging(""))
	require.NoError(t, ConfigureLogging("debug"))
	require.NoError(t, ConfigureLogging("not-a-level"))
}
