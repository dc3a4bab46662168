package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	// No config.yaml in this package's working directory: defaults apply.
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5010, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 30*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Fetch.BackoffBase)
	assert.Equal(t, 8*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 4096, cfg.Cache.MaxEntries)
	assert.False(t, cfg.Postgres.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.Providers)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARGUS_POSTGRES_DSN", "postgres://override")
	t.Setenv("ARGUS_REDIS_ADDR", "redis-override:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://override", cfg.Postgres.DSN)
	assert.Equal(t, "redis-override:6379", cfg.Redis.Addr)
}

func TestProviderAPIKeyEnvOverride(t *testing.T) {
	cfg := &Config{
		Providers: []ProviderConfig{
			{ID: "wurlus"},
			{ID: "wal-app"},
		},
	}

	t.Setenv("ARGUS_PROVIDER_WURLUS_API_KEY", "key-1")
	t.Setenv("ARGUS_PROVIDER_WAL_APP_API_KEY", "key-2")
	overrideFromEnv(cfg)

	assert.Equal(t, "key-1", cfg.Providers[0].APIKey)
	assert.Equal(t, "key-2", cfg.Providers[1].APIKey)
}
