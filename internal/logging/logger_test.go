package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name     string
		level    LogLevel
		expected slog.Level
	}{
		{name: "Debug level", level: LevelDebug, expected: slog.LevelDebug},
		{name: "Info level", level: LevelInfo, expected: slog.LevelInfo},
		{name: "Warn level", level: LevelWarn, expected: slog.LevelWarn},
		{name: "Error level", level: LevelError, expected: slog.LevelError},
		{name: "Upper case", level: LogLevel("DEBUG"), expected: slog.LevelDebug},
		{name: "Invalid level defaults to Info", level: LogLevel("invalid"), expected: slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.level))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, LevelWarn, FormatText)

	Debug("debug message")
	Info("info message")
	Warn("warn message", "key", "value")
	Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "key=value")
	assert.Contains(t, output, "error message")
}

func TestJSONFormat(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, LevelInfo, FormatJSON)

	With("request_id", "abc").Info("issue published", "issue_number", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "issue published", line["msg"])
	assert.Equal(t, "abc", line["request_id"])
	assert.EqualValues(t, 7, line["issue_number"])
}

func TestContextLogger(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, LevelInfo, FormatText)

	assert.Same(t, defaultLogger, FromContext(context.Background()))

	ctx := NewContext(context.Background(), With("request_id", "abc"))
	FromContext(ctx).Info("request handled")
	assert.Contains(t, buf.String(), "request_id=abc")
}

func TestGetLogger(t *testing.T) {
	require.NotNil(t, GetLogger())
}

func TestMaskSensitive(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty string", input: "", expected: "<not set>"},
		{name: "Short string", input: "abc", expected: "<set>"},
		{name: "Exactly 4 characters", input: "abcd", expected: "<set>"},
		{name: "Token-like string", input: "ghp_2Dn5j8fk39Dkf0s", expected: "ghp_...***"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MaskSensitive(tc.input))
		})
	}
}
