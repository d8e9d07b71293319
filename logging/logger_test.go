package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" INFO ":  zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"Error":   zapcore.ErrorLevel,
		"":        zapcore.WarnLevel,
		"verbose": zapcore.WarnLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in, zapcore.WarnLevel), in)
	}
}

func TestNewLoggerJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: "info"}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("restoration finished", zap.Int("width", 640))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "restoration finished", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, float64(640), entry["width"])
}

func TestNewLoggerDevelopmentDefaultsToDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Development: true}, &buf)
	require.NoError(t, err)

	logger.Debug("diffusion configured")
	assert.Contains(t, buf.String(), "diffusion configured")
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restore.log")
	logger, err := NewLogger(Config{Level: "debug", File: path}, &bytes.Buffer{})
	require.NoError(t, err)

	logger.Warn("settings file missing", zap.String("path", "x.yaml"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"settings file missing"`)
}
