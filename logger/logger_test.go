package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyama86/slaffic-ticket/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		l := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
		l.Info("dropped")
		l.Warn("ticket published", slog.String("ticket", "IT-20240601-0001"))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "ticket published", entry["msg"])
		assert.Equal(t, "IT-20240601-0001", entry["ticket"])
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		l := newLogger(config.LogConfig{Level: "debug", Format: "text"}, &buf)
		l.Debug("draft captured", slog.String("user", "UALICE"))
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "user=UALICE")
	})
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slaffic-ticket.log")
	l := New(config.LogConfig{Level: "info", Format: "json", File: path})
	l.Info("started")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"started"`)
}
