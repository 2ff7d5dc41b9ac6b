package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("POLL_MAX_ATTEMPTS", "")
	t.Setenv("POLL_TIMEOUT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("TONAPI_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, 12, cfg.MaxAttempts)
	assert.Equal(t, 14*15*time.Second, cfg.PollTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "1s")
	t.Setenv("POLL_MAX_ATTEMPTS", "3")
	t.Setenv("POLL_TIMEOUT", "")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("TONAPI_BASE_URL", "https://tonapi.example")
	t.Setenv("TONAPI_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.PollTimeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "https://tonapi.example", cfg.TonAPIBaseURL)
	assert.Equal(t, "secret", cfg.TonAPIToken)
}

func TestLoadRejectsBadMaxAttempts(t *testing.T) {
	t.Setenv("POLL_MAX_ATTEMPTS", "zero")

	_, err := Load()
	assert.Error(t, err)
}
