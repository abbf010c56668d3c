package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.Assistant.FrameLoadTimeout)
	assert.Equal(t, time.Second, cfg.Assistant.RelayRetryDelay)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.TrustProxy)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ASSISTANT_URL", "https://chat.example.com/embed?bot=quant")
	t.Setenv("RELAY_RETRY_DELAY", "1500")
	t.Setenv("TYPING_SPEED", "30ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FRONTEND_URL", "https://desk.example.com")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com", cfg.Assistant.Origin)
	assert.Equal(t, 1500*time.Millisecond, cfg.Assistant.RelayRetryDelay)
	assert.Equal(t, 30*time.Millisecond, cfg.Assistant.TypingSpeed)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.TrustProxy)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][2]string{
		"unknown driver":   {"STORE_DRIVER", "mongo"},
		"relative api url": {"PLATFORM_API_URL", "/api"},
		"zero timeout":     {"FRAME_LOAD_TIMEOUT", "0s"},
		"negative limit":   {"LOGIN_RATE_LIMIT", "-1"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_RedisNeedsURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_URL")
}
