package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("SESSION_SIGNING_KEY", "")
	t.Setenv("ELIGO_ENV", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.GracePeriod)
	assert.Equal(t, time.Hour, cfg.Session.SweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.Session.ReservationLease)
	assert.Equal(t, 5*time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, devSigningKey, cfg.Session.SigningKey)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 500, cfg.RateLimit.GlobalRequests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.GlobalWindow)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ELIGO_ADDR", ":9090")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("SESSION_SIGNING_KEY", "secret")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "secret", cfg.Session.SigningKey)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 100, cfg.Kafka.BatchSize)
}

func TestFromEnv_ProductionRequiresSigningKey(t *testing.T) {
	t.Setenv("ELIGO_ENV", "production")
	t.Setenv("SESSION_SIGNING_KEY", "")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CATALOG_CACHE_TTL=90s\n"), 0o600))
	t.Setenv("CATALOG_CACHE_TTL", "")
	require.NoError(t, os.Unsetenv("CATALOG_CACHE_TTL"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Catalog.CacheTTL)
	require.NoError(t, os.Unsetenv("CATALOG_CACHE_TTL"))
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}
