package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := Setup(Config{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)
	defer cleanup()

	logger.Debug("hidden")
	logger.With("component", "indexer").Info("indexed", "files", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "indexed", rec["msg"])
	assert.Equal(t, "indexer", rec["component"])
	assert.EqualValues(t, 3, rec["files"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSetup_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := Setup(Config{Level: "debug", Output: &buf})
	require.NoError(t, err)
	defer cleanup()

	logger.Debug("visible", "path", "escort.lua")
	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "path=escort.lua")
}

func TestSetup_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "luarag.log")

	logger, cleanup, err := Setup(Config{Level: "warn", Format: "json", FilePath: path, Output: &buf})
	require.NoError(t, err)

	logger.Info("skipped")
	logger.Warn("written")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
	assert.NotContains(t, string(data), "skipped")
	assert.Contains(t, buf.String(), "written")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
