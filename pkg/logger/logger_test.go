package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorHandler(t *testing.T) {
	tests := []struct {
		name     string
		level    slog.Level
		message  string
		wantCode string
	}{
		{name: "error is red", level: slog.LevelError, message: "store failed", wantCode: colorRed},
		{name: "warning is yellow", level: slog.LevelWarn, message: "relationship dropped", wantCode: colorYellow},
		{name: "plain info", level: slog.LevelInfo, message: "server started", wantCode: ""},
		{name: "materialization is green", level: slog.LevelInfo, message: "Graph materialized", wantCode: colorGreen},
		{name: "promotion is cyan", level: slog.LevelInfo, message: "Node promoted", wantCode: colorCyan},
		{name: "debug has no color", level: slog.LevelDebug, message: "matching candidate", wantCode: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewLogger(&buf, slog.LevelDebug)
			log.Log(t.Context(), tt.level, tt.message)

			output := buf.String()
			assert.Contains(t, output, tt.message)
			if tt.wantCode == "" {
				assert.NotContains(t, output, "\033[")
				return
			}
			assert.Contains(t, output, tt.wantCode)
			assert.Contains(t, output, colorReset)
		})
	}
}

func TestColorHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelDebug).With("component", "builder").WithGroup("plan")

	log.Info("planned", "nodes", 3)

	output := buf.String()
	assert.Contains(t, output, "component=builder")
	assert.Contains(t, output, "plan.nodes=3")
}

func TestColorHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelWarn)

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "": slog.LevelInfo,
		"warning": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, FormatJSON, slog.LevelInfo)
	require.NoError(t, err)
	slog.New(h).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"k":"v"`)

	_, err = NewHandler(&buf, "xml", slog.LevelInfo)
	assert.Error(t, err)
}
