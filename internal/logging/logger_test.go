package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testComponent = "recorder"
	testAgent     = "claude"
	levelINFO     = "INFO"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     slog.Level
	}{
		{"empty defaults to INFO", "", slog.LevelInfo},
		{"DEBUG lowercase", "debug", slog.LevelDebug},
		{"WARN uppercase", "WARN", slog.LevelWarn},
		{"ERROR uppercase", "ERROR", slog.LevelError},
		{"invalid defaults to INFO", "invalid", slog.LevelInfo},
		{"warning alias", "warning", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLogLevel(tt.envValue)
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestInit_CreatesLogFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Init(tmpDir, "recorder"))
	defer Close()

	logFile := filepath.Join(tmpDir, "logs", "recorder.log")
	_, err := os.Stat(logFile)
	require.NoError(t, err)
}

func TestInit_WritesJSONLogs(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Init(tmpDir, "store"))

	Info(context.Background(), "test message", slog.String("key", "value"))
	Close()

	content, err := os.ReadFile(filepath.Join(tmpDir, "logs", "store.log"))
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(content, &entry))
	require.Equal(t, "test message", entry["msg"])
	require.Equal(t, "value", entry["key"])
	require.Contains(t, entry, "time")
}

func TestInit_RespectsLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(LogLevelEnvVar, "WARN")
	require.NoError(t, Init(tmpDir, "rpcserver"))

	ctx := context.Background()
	Debug(ctx, "debug message")
	Info(ctx, "info message")
	Warn(ctx, "warn message")
	Close()

	content, err := os.ReadFile(filepath.Join(tmpDir, "logs", "rpcserver.log"))
	require.NoError(t, err)

	s := string(content)
	require.NotContains(t, s, "debug message")
	require.NotContains(t, s, "info message")
	require.Contains(t, s, "warn message")
}

func TestInit_FallsBackToStderrOnError(t *testing.T) {
	tmpDir := t.TempDir()
	logsDir := filepath.Join(tmpDir, "logs")
	require.NoError(t, os.MkdirAll(logsDir, 0o755))
	// Create a directory where the log file should go, forcing an open error.
	require.NoError(t, os.MkdirAll(filepath.Join(logsDir, "hookingest.log"), 0o755))

	err := Init(tmpDir, "hookingest")
	require.NoError(t, err)

	Info(context.Background(), "fallback test")
	Close()
}

func TestClose_SafeToCallMultipleTimes(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Init(tmpDir, "recorder"))
	Close()
	Close()
	Close()
}

func TestLogging_BeforeInit(_ *testing.T) {
	resetLogger()

	ctx := context.Background()
	Debug(ctx, "debug before init")
	Info(ctx, "info before init")
	Warn(ctx, "warn before init")
	Error(ctx, "error before init")
}

func TestLogging_IncludesContextValues(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Init(tmpDir, "recorder"))

	ctx := context.Background()
	ctx = WithToolCall(ctx, "toolu_123")
	ctx = WithComponent(ctx, testComponent)
	ctx = WithAgent(ctx, testAgent)

	Info(ctx, "context test message")
	Close()

	content, err := os.ReadFile(filepath.Join(tmpDir, "logs", "recorder.log"))
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(content, &entry))
	require.Equal(t, "toolu_123", entry["tool_call_id"])
	require.Equal(t, testComponent, entry["component"])
	require.Equal(t, testAgent, entry["agent"])
}

func TestLogging_ParentSessionID(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Init(tmpDir, "recorder"))

	ctx := context.Background()
	ctx = WithSession(ctx, "parent-session")
	ctx = WithSession(ctx, "child-session")

	Info(ctx, "nested session test")
	Close()

	content, err := os.ReadFile(filepath.Join(tmpDir, "logs", "recorder.log"))
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(content, &entry))
	require.Equal(t, "child-session", entry["session_id"])
	require.Equal(t, "parent-session", entry["parent_session_id"])
}

func TestLogDuration(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, Init(tmpDir, "recorder"))

	ctx := WithComponent(context.Background(), testComponent)
	start := time.Now().Add(-100 * time.Millisecond)

	LogDuration(ctx, slog.LevelInfo, "operation completed", start,
		slog.String("source", "vcs_poll"),
		slog.Bool("success", true),
	)
	Close()

	content, err := os.ReadFile(filepath.Join(tmpDir, "logs", "recorder.log"))
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(content, &entry))
	durationMs, ok := entry["duration_ms"].(float64)
	require.True(t, ok)
	require.InDelta(t, 100, durationMs, 110)
	require.Equal(t, testComponent, entry["component"])
	require.Equal(t, levelINFO, entry["level"])
}

func TestLogging_ContextSessionID_WhenNoGlobalSet(t *testing.T) {
	resetLogger()
	defer resetLogger()

	var buf bytes.Buffer
	mu.Lock()
	logger = createLogger(&buf, slog.LevelInfo)
	mu.Unlock()

	ctx := WithSession(context.Background(), "context-only-session")
	ctx = WithComponent(ctx, testComponent)
	Info(ctx, "context session test")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "context-only-session", entry["session_id"])
}

func TestInit_RejectsInvalidProcessKind(t *testing.T) {
	tests := []struct {
		name        string
		processKind string
		wantErr     bool
	}{
		{"empty", "", true},
		{"path traversal", "../../tmp/evil", true},
		{"forward slash", "recorder/x", true},
		{"valid", "recorder", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLogger()
			tmpDir := t.TempDir()
			err := Init(tmpDir, tt.processKind)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, strings.Contains(err.Error(), "process kind"))
			} else {
				require.NoError(t, err)
			}
			Close()
		})
	}
}
