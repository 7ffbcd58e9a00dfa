package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Level
	}{
		{"", log.InfoLevel},
		{"DEBUG", log.DebugLevel},
		{"info", log.InfoLevel},
		{"Warn", log.WarnLevel},
		{"WARNING", log.WarnLevel},
		{"ERROR", log.ErrorLevel},
		{"CRITICAL", log.FatalLevel},
		{"fatal", log.FatalLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "INFO", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("tool call", "tool", "list_watches", "duration_ms", 12)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug line should be filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "tool call", entry["msg"])
	assert.Equal(t, "list_watches", entry["tool"])
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "ERROR", Format: "text", Debug: true, Output: &buf})
	require.NoError(t, err)

	logger.Debug("stage transition")
	assert.Contains(t, buf.String(), "stage transition")
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	require.Error(t, err)
}
