package webhooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("WEBHOOK_QUEUE_SIZE", "50")
	t.Setenv("WEBHOOK_MAX_RETRIES", "2")
	t.Setenv("WEBHOOK_RETRY_INTERVAL", "5s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.QueueSize)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.RetryInterval)
	assert.Equal(t, 10, cfg.AutoDisableThreshold, "untouched values keep their defaults")
}
