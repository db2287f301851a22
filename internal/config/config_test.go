package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom(t *testing.T) {
	if _, err := time.LoadLocation("Europe/Berlin"); err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(`
db:
  host: localhost
  port: 5432
jwt:
  secret: ${JWT_SECRET_FOR_TEST}
analytics:
  timezone: Europe/Berlin
reminder:
  interval: 30s
  breaker:
    failure_threshold: 3
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secrets.env"), []byte("JWT_SECRET_FOR_TEST=s3cret\n"), 0o600))
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ANALYTICS_TIMEZONE", "")

	cfg, err := LoadFrom("local", dir)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Reminder.Interval)
	assert.Equal(t, 3, cfg.Reminder.Breaker.FailureThreshold)
	assert.Equal(t, 2, cfg.Reminder.Breaker.SuccessThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, "Europe/Berlin", cfg.AnalyticsLocation().String())
}

func TestLoadFromRequiresSecret(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("server:\n  port: \"8080\"\n"), 0o600))
	t.Setenv("JWT_SECRET", "")

	_, err := LoadFrom("local", dir)
	assert.Error(t, err)
}

func TestLoadFromRejectsUnresolvedSecret(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("jwt:\n  secret: ${HABITFORGE_UNSET_SECRET}\n"), 0o600))
	t.Setenv("JWT_SECRET", "")

	_, err := LoadFrom("local", dir)
	assert.Error(t, err)
}
