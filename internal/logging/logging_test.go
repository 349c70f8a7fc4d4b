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

	"github.com/rgehrsitz/tyche/internal/config"
)

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Format: "auto", Output: &buf})

	logger.Sugar().Infof("evaluated %d samples", 100)
	logger.Sugar().Debugf("hidden")
	Sync(logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is below the level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "evaluated 100 samples", entry["msg"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Format: "console", Output: &buf})

	logger.Sugar().Warnf("slow optimizer run")
	Sync(logger)

	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "slow optimizer run")
}

func TestNew_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tyche.log")
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Format: "json", File: path, MaxSizeMB: 1, Output: &buf})

	logger.Sugar().Errorf("numerical failure in %s", "PEM")
	Sync(logger)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "numerical failure in PEM")
	assert.Contains(t, buf.String(), "numerical failure in PEM")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "loud", Format: "json", Output: &buf})

	logger.Debug("hidden")
	logger.Info("shown")
	Sync(logger)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.DefaultSettings().Log)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, 16, cfg.MaxSizeMB)
}
