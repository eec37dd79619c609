// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, the process
// exits with an error instead of limping along half-configured.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all runtime configuration for the sync service.
type Config struct {
	Port     string `validate:"required"`
	LogLevel string `validate:"required,oneof=debug info warn error"`

	DatabaseURL string `validate:"required"`
	RedisURL    string `validate:"required"`

	UpstreamBaseURL      string `validate:"required,url"`
	UpstreamTokenURL     string `validate:"required,url"`
	UpstreamClientID     string `validate:"required"`
	UpstreamClientSecret string `validate:"required"`
	WebhookSecret        string `validate:"required"`

	// Cron specs for the two scheduled run kinds.
	FullSyncSpec        string `validate:"required"`
	IncrementalSyncSpec string `validate:"required"`

	HTTPTimeout     time.Duration `validate:"required"`
	RunTimeout      time.Duration `validate:"required"`
	PageSize        int           `validate:"required,min=1,max=500"`
	InitialLookback time.Duration `validate:"required"`

	RetryMaxAttempts  int           `validate:"required,min=1"`
	RetryInitialDelay time.Duration `validate:"required"`
	RetryMaxDelay     time.Duration `validate:"required"`

	BreakerFailureThreshold int           `validate:"required,min=1"`
	BreakerResetTimeout     time.Duration `validate:"required"`
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8084"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		UpstreamBaseURL:      os.Getenv("UPSTREAM_BASE_URL"),
		UpstreamTokenURL:     os.Getenv("UPSTREAM_TOKEN_URL"),
		UpstreamClientID:     os.Getenv("UPSTREAM_CLIENT_ID"),
		UpstreamClientSecret: os.Getenv("UPSTREAM_CLIENT_SECRET"),
		WebhookSecret:        os.Getenv("WEBHOOK_SECRET"),

		FullSyncSpec:        getEnv("FULL_SYNC_CRON", "0 3 * * *"),
		IncrementalSyncSpec: getEnv("INCREMENTAL_SYNC_CRON", "@every 15m"),
	}

	var err error
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = getDuration("RUN_TIMEOUT", 20*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = getInt("SYNC_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.InitialLookback, err = getDuration("SYNC_INITIAL_LOOKBACK", 720*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = getInt("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RetryInitialDelay, err = getDuration("RETRY_INITIAL_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = getDuration("RETRY_MAX_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BreakerFailureThreshold, err = getInt("BREAKER_FAILURE_THRESHOLD", 5); err != nil {
		return nil, err
	}
	if cfg.BreakerResetTimeout, err = getDuration("BREAKER_RESET_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
