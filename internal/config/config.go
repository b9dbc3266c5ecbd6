package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerURL      string
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	RetryCooldown  time.Duration
	ReconnectDelay time.Duration
	PageSize       int
	AlertTTL       time.Duration
}

func Load() (*Config, error) {
	maxRetries, err := strconv.Atoi(getEnv("TALIM_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("TALIM_MAX_RETRIES: %w", err)
	}
	pageSize, err := strconv.Atoi(getEnv("TALIM_PAGE_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("TALIM_PAGE_SIZE: %w", err)
	}

	durations := map[string]*struct {
		fallback string
		value    time.Duration
	}{
		"TALIM_BACKOFF_BASE":    {fallback: "3s"},
		"TALIM_BACKOFF_CAP":     {fallback: "30s"},
		"TALIM_RETRY_COOLDOWN":  {fallback: "30s"},
		"TALIM_RECONNECT_DELAY": {fallback: "1s"},
		"TALIM_ALERT_TTL":       {fallback: "30s"},
	}
	for key, d := range durations {
		d.value, err = time.ParseDuration(getEnv(key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}

	cfg := &Config{
		ServerURL:      getEnv("TALIM_WS_URL", "ws://localhost:5005/chat"),
		MaxRetries:     maxRetries,
		BackoffBase:    durations["TALIM_BACKOFF_BASE"].value,
		BackoffCap:     durations["TALIM_BACKOFF_CAP"].value,
		RetryCooldown:  durations["TALIM_RETRY_COOLDOWN"].value,
		ReconnectDelay: durations["TALIM_RECONNECT_DELAY"].value,
		PageSize:       pageSize,
		AlertTTL:       durations["TALIM_ALERT_TTL"].value,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("TALIM_WS_URL is required")
	}

	if c.MaxRetries <= 0 {
		return fmt.Errorf("TALIM_MAX_RETRIES must be greater than 0")
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("TALIM_PAGE_SIZE must be greater than 0")
	}

	if c.BackoffBase <= 0 || c.BackoffCap < c.BackoffBase {
		return fmt.Errorf("backoff cap must be at least the backoff base")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
