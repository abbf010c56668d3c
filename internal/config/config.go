// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/quantdesk/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	PlatformURL string
	LogLevel    slog.Level

	Store     StoreConfig
	Assistant AssistantConfig

	HTTPClientTimeout time.Duration
	LoginRateLimit    int  // attempts per minute per client, 0 disables
	TrustProxy        bool // take the client address from X-Forwarded-For / X-Real-IP
}

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Driver   string
	DBPath   string
	RedisURL string
}

// Options converts the config for store.Open.
func (s StoreConfig) Options() store.Options {
	return store.Options{Driver: s.Driver, DBPath: s.DBPath, RedisURL: s.RedisURL}
}

// AssistantConfig controls the embedded chat widget.
type AssistantConfig struct {
	URL              string
	Origin           string
	FrameLoadTimeout time.Duration
	RelayRetryDelay  time.Duration
	RelayAckTimeout  time.Duration
	TypingSpeed      time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		PlatformURL: getEnv("PLATFORM_API_URL", "http://localhost:9000"),
		LogLevel:    getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		Store: StoreConfig{
			Driver:   getEnv("STORE_DRIVER", store.DriverSQLite),
			DBPath:   getEnv("DB_PATH", "./data/quantdesk.db"),
			RedisURL: getEnv("REDIS_URL", ""),
		},
		Assistant: AssistantConfig{
			URL:              getEnv("ASSISTANT_URL", ""),
			Origin:           getEnv("ASSISTANT_ORIGIN", ""),
			FrameLoadTimeout: getEnvDuration("FRAME_LOAD_TIMEOUT", 10*time.Second),
			RelayRetryDelay:  getEnvDuration("RELAY_RETRY_DELAY", time.Second),
			RelayAckTimeout:  getEnvDuration("RELAY_ACK_TIMEOUT", 5*time.Second),
			TypingSpeed:      getEnvDuration("TYPING_SPEED", 50*time.Millisecond),
		},
		HTTPClientTimeout: getEnvDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second),
		LoginRateLimit:    getEnvInt("LOGIN_RATE_LIMIT", 10),
		TrustProxy:        getEnvBool("TRUST_PROXY", false),
	}

	if cfg.Assistant.Origin == "" {
		cfg.Assistant.Origin = originOf(cfg.Assistant.URL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.PlatformURL == "" {
		return fmt.Errorf("PLATFORM_API_URL cannot be empty")
	}
	if u, err := url.Parse(c.PlatformURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PLATFORM_API_URL must be an absolute URL")
	}
	switch c.Store.Driver {
	case store.DriverSQLite:
		if c.Store.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case store.DriverRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("REDIS_URL cannot be empty when STORE_DRIVER=redis")
		}
	case store.DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Assistant.FrameLoadTimeout <= 0 {
		return fmt.Errorf("FRAME_LOAD_TIMEOUT must be > 0")
	}
	if c.Assistant.RelayRetryDelay <= 0 {
		return fmt.Errorf("RELAY_RETRY_DELAY must be > 0")
	}
	if c.Assistant.RelayAckTimeout <= 0 {
		return fmt.Errorf("RELAY_ACK_TIMEOUT must be > 0")
	}
	if c.HTTPClientTimeout <= 0 {
		return fmt.Errorf("HTTP_CLIENT_TIMEOUT must be > 0")
	}
	if c.LoginRateLimit < 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

// getEnvDuration accepts Go durations ("750ms") or plain milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return lvl
}
