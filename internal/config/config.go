// Package config loads the pipeline configuration from the process
// environment. Everything has a default except the upstream API key.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store holds the analytic-store connection settings.
type Store struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Addr is the native-protocol dial address.
func (s Store) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Config is the full process configuration.
type Config struct {
	APIKey string

	RateLimitCalls  int
	RateLimitPeriod time.Duration

	Store Store

	PipelineInterval time.Duration
	HTTPAddr         string
	StrictSchema     bool
}

// Load reads the environment, applies defaults and validates.
func Load() (Config, error) {
	cfg := Config{
		APIKey:           os.Getenv("RIOT_API_KEY"),
		RateLimitCalls:   100,
		RateLimitPeriod:  120 * time.Second,
		PipelineInterval: 21600 * time.Second,
		HTTPAddr:         ":8080",
		Store: Store{
			Host:     "localhost",
			Port:     9000,
			Database: "default",
			User:     "default",
		},
	}

	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("config: RIOT_API_KEY is required")
	}

	var err error
	if cfg.RateLimitCalls, err = intVar("RATE_LIMIT_CALLS", cfg.RateLimitCalls); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPeriod, err = secondsVar("RATE_LIMIT_PERIOD_S", cfg.RateLimitPeriod); err != nil {
		return Config{}, err
	}
	if cfg.PipelineInterval, err = secondsVar("PIPELINE_INTERVAL_S", cfg.PipelineInterval); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("STRICT_SCHEMA"); v != "" {
		cfg.StrictSchema, err = strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: STRICT_SCHEMA: %w", err)
		}
	}

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		cfg.Store.Host = v
	}
	if cfg.Store.Port, err = intVar("CLICKHOUSE_PORT", cfg.Store.Port); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("CLICKHOUSE_DATABASE"); v != "" {
		cfg.Store.Database = v
	}
	if v := os.Getenv("CLICKHOUSE_USER"); v != "" {
		cfg.Store.User = v
	}
	cfg.Store.Password = os.Getenv("CLICKHOUSE_PASSWORD")

	if cfg.RateLimitCalls <= 0 {
		return Config{}, fmt.Errorf("config: RATE_LIMIT_CALLS must be > 0, got %d", cfg.RateLimitCalls)
	}
	if cfg.RateLimitPeriod <= 0 {
		return Config{}, fmt.Errorf("config: RATE_LIMIT_PERIOD_S must be > 0")
	}
	if cfg.PipelineInterval <= 0 {
		return Config{}, fmt.Errorf("config: PIPELINE_INTERVAL_S must be > 0")
	}
	return cfg, nil
}

func intVar(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return n, nil
}

func secondsVar(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return time.Duration(n) * time.Second, nil
}
