package common

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("debug", "json", &buf)

	logger.Debug("built transaction", "mint", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "built transaction", entry["msg"])
	assert.Equal(t, "abc", entry["mint"])
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "text", &buf)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestLoggerMixin(t *testing.T) {
	var m LoggerMixin
	assert.Equal(t, slog.Default(), m.GetLogger())

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	m.SetLogger(custom)
	m.SetLogger(nil)
	assert.Equal(t, custom, m.GetLogger())
}
