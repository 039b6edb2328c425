package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RIOT_API_KEY", "RGAPI-test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "RGAPI-test", cfg.APIKey)
	require.Equal(t, 100, cfg.RateLimitCalls)
	require.Equal(t, 120*time.Second, cfg.RateLimitPeriod)
	require.Equal(t, 6*time.Hour, cfg.PipelineInterval)
	require.Equal(t, "localhost:9000", cfg.Store.Addr())
	require.False(t, cfg.StrictSchema)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RIOT_API_KEY", "RGAPI-test")
	t.Setenv("RATE_LIMIT_CALLS", "50")
	t.Setenv("RATE_LIMIT_PERIOD_S", "60")
	t.Setenv("PIPELINE_INTERVAL_S", "3600")
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	t.Setenv("CLICKHOUSE_PORT", "9440")
	t.Setenv("CLICKHOUSE_DATABASE", "rift")
	t.Setenv("STRICT_SCHEMA", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 50, cfg.RateLimitCalls)
	require.Equal(t, time.Minute, cfg.RateLimitPeriod)
	require.Equal(t, time.Hour, cfg.PipelineInterval)
	require.Equal(t, "ch.internal:9440", cfg.Store.Addr())
	require.Equal(t, "rift", cfg.Store.Database)
	require.True(t, cfg.StrictSchema)
}

func TestLoadMissingKey(t *testing.T) {
	t.Setenv("RIOT_API_KEY", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadBadNumber(t *testing.T) {
	t.Setenv("RIOT_API_KEY", "RGAPI-test")
	t.Setenv("RATE_LIMIT_CALLS", "many")
	_, err := Load()
	require.Error(t, err)
}
