package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		wantLevels []string
	}{
		{name: "debug", level: "debug", wantLevels: []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{name: "info", level: "info", wantLevels: []string{"INFO", "WARN", "ERROR"}},
		{name: "warning alias", level: "warning", wantLevels: []string{"WARN", "ERROR"}},
		{name: "error", level: "error", wantLevels: []string{"ERROR"}},
		{name: "unknown falls back to info", level: "verbose", wantLevels: []string{"INFO", "WARN", "ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			logger, err := New(&Config{Level: tt.level, Format: "json", writer: output})
			require.NoError(t, err)

			logger.Debug("job accepted")
			logger.Info("job dispatched")
			logger.Warn("dispatch retry scheduled")
			logger.Error("job failed")

			var levels []string
			for _, entry := range decodeLines(t, output) {
				levels = append(levels, entry["level"].(string))
			}
			assert.Equal(t, tt.wantLevels, levels)
		})
	}
}

func TestNew_Formats(t *testing.T) {
	t.Run("json carries attributes", func(t *testing.T) {
		output := &bytes.Buffer{}
		logger, err := New(&Config{Level: "info", Format: "json", writer: output})
		require.NoError(t, err)

		logger.Info("result ingested",
			slog.String("job_id", "job_1"),
			slog.Int("attempt", 2),
			slog.Bool("final", true),
		)

		entries := decodeLines(t, output)
		require.Len(t, entries, 1)
		assert.Equal(t, "result ingested", entries[0]["msg"])
		assert.Equal(t, "job_1", entries[0]["job_id"])
		assert.Equal(t, float64(2), entries[0]["attempt"])
		assert.Equal(t, true, entries[0]["final"])
		assert.Contains(t, entries[0], "time")
	})

	t.Run("console uses tint", func(t *testing.T) {
		output := &bytes.Buffer{}
		logger, err := New(&Config{Level: "info", Format: "console", writer: output})
		require.NoError(t, err)

		logger.Info("relay idle")

		// tint abbreviates levels
		assert.Contains(t, output.String(), "INF")
		assert.Contains(t, output.String(), "relay idle")
	})

	t.Run("source location", func(t *testing.T) {
		output := &bytes.Buffer{}
		logger, err := New(&Config{Level: "info", Format: "json", EnableSource: true, writer: output})
		require.NoError(t, err)

		logger.Info("with source")

		entries := decodeLines(t, output)
		require.Len(t, entries, 1)
		source, ok := entries[0]["source"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, source, "file")
		assert.Contains(t, source, "line")
	})
}

func TestNew_ServiceAttribute(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "json", Service: "prompt-gateway-worker", writer: output})
	require.NoError(t, err)

	logger.WithAttrs(slog.String("component", "outbox_relay")).Info("started")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "prompt-gateway-worker", entries[0]["service"])
	assert.Equal(t, "outbox_relay", entries[0]["component"])
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("written to file", slog.String("job_id", "job_1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "written to file", entry["msg"])
	assert.Equal(t, "job_1", entry["job_id"])
}

func TestNew_FileOutputError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "gateway.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.Error(t, err)
	assert.Nil(t, logger)
	assert.Contains(t, err.Error(), "failed to open log file")
}
