package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/webhooks/pkg/config"
)

type testConfig struct {
	Name     string        `env:"CONFIG_TEST_NAME" envDefault:"fallback"`
	Size     int           `env:"CONFIG_TEST_SIZE" envDefault:"1000"`
	Interval time.Duration `env:"CONFIG_TEST_INTERVAL" envDefault:"30s"`
}

func TestLoadDefaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "fallback", cfg.Name)
	assert.Equal(t, 1000, cfg.Size)
	assert.Equal(t, 30*time.Second, cfg.Interval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_TEST_NAME", "from-env")
	t.Setenv("CONFIG_TEST_SIZE", "42")
	t.Setenv("CONFIG_TEST_INTERVAL", "1m30s")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 42, cfg.Size)
	assert.Equal(t, 90*time.Second, cfg.Interval)
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_SIZE", "not-a-number")

	var cfg testConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoadNilPointer(t *testing.T) {
	err := config.Load[testConfig](nil)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}
