package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/config"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{name: "json stdout", cfg: config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{name: "text stderr", cfg: config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if logger := New(tt.cfg, config.VerbosityNormal, "1.0.0"); logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{name: "debug level", input: "debug", expected: slog.LevelDebug},
		{name: "info level", input: "info", expected: slog.LevelInfo},
		{name: "warn level", input: "warn", expected: slog.LevelWarn},
		{name: "warning level", input: "warning", expected: slog.LevelWarn},
		{name: "error level", input: "error", expected: slog.LevelError},
		{name: "unknown defaults to info", input: "unknown", expected: slog.LevelInfo},
		{name: "empty defaults to info", input: "", expected: slog.LevelInfo},
		{name: "case insensitive", input: "DEBUG", expected: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestVerbosity_RaisesLevel(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json"}

	tests := []struct {
		verbosity string
		wantDebug bool
		wantDump  bool
	}{
		{verbosity: config.VerbosityNormal, wantDebug: false, wantDump: false},
		{verbosity: config.VerbosityDebug, wantDebug: true, wantDump: false},
		{verbosity: config.VerbosityVerbose, wantDebug: true, wantDump: true},
	}

	for _, tt := range tests {
		t.Run(tt.verbosity, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newWithWriter(&buf, cfg, tt.verbosity, "test")
			logger.Debug("verbosity check")

			if got := buf.Len() > 0; got != tt.wantDebug {
				t.Errorf("debug output written = %v, want %v", got, tt.wantDebug)
			}
			if logger.DumpsMessages() != tt.wantDump {
				t.Errorf("DumpsMessages() = %v, want %v", logger.DumpsMessages(), tt.wantDump)
			}
		})
	}
}

func TestDumpMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.LoggingConfig{Format: "json"}, config.VerbosityVerbose, "test")

	logger.DumpMessage("stat/dev1/POWER", []byte("ON"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry["topic"] != "stat/dev1/POWER" {
		t.Errorf("topic = %v, want stat/dev1/POWER", entry["topic"])
	}
	if entry["payload"] != "ON" {
		t.Errorf("payload = %v, want ON", entry["payload"])
	}

	buf.Reset()
	logger.DumpMessage("big", bytes.Repeat([]byte("x"), maxDumpedPayload+10))
	if !strings.Contains(buf.String(), `"truncated":true`) {
		t.Errorf("expected truncated dump, got %s", buf.String())
	}
}

func TestDumpMessage_DisabledWhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.LoggingConfig{Format: "json"}, config.VerbosityDebug, "test")

	logger.DumpMessage("stat/dev1/POWER", []byte("ON"))

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %s", buf.String())
	}
}

func TestLogger_With(t *testing.T) {
	logger := newWithWriter(&bytes.Buffer{}, config.LoggingConfig{}, config.VerbosityVerbose, "1.0.0")
	childLogger := logger.With("component", "mqtt")

	if childLogger == nil {
		t.Fatal("expected non-nil child logger")
	}
	if childLogger == logger {
		t.Error("expected child logger to be different from parent")
	}
	if !childLogger.DumpsMessages() {
		t.Error("child logger should inherit verbose message dumps")
	}
}

func TestDefault(t *testing.T) {
	if logger := Default(); logger == nil {
		t.Fatal("expected non-nil default logger")
	}
}

func TestLogger_OutputContainsDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.LoggingConfig{Level: "info"}, config.VerbosityNormal, "test-version")

	logger.Info("test message", "key", "value")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if logEntry["service"] != serviceName {
		t.Errorf("expected service=%q, got %v", serviceName, logEntry["service"])
	}
	if logEntry["version"] != "test-version" {
		t.Errorf("expected version='test-version', got %v", logEntry["version"])
	}
	if logEntry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got %v", logEntry["msg"])
	}
	if logEntry["key"] != "value" {
		t.Errorf("expected key='value', got %v", logEntry["key"])
	}
}
