package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/webhooks/pkg/logger"
)

func TestNewJSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithService("webhooks"),
	)

	log.Info("delivery queued", slog.Int64("webhook_id", 7))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "delivery queued", record["msg"])
	assert.Equal(t, "webhooks", record["service"])
	assert.Equal(t, float64(7), record["webhook_id"])
}

func TestNewTextOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithTextFormatter(),
	)

	log.Warn("webhook disabled")
	assert.True(t, strings.Contains(buf.String(), "webhook disabled"))
	assert.True(t, strings.Contains(buf.String(), "level=WARN"))
}

func TestNewLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithLevel(slog.LevelWarn),
	)

	log.Info("suppressed")
	assert.Empty(t, buf.String())

	log.Error("recorded")
	assert.NotEmpty(t, buf.String())
}
