package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "discoveryd"

// maxDumpedPayload caps how much of an MQTT payload a message dump prints.
const maxDumpedPayload = 512

// Logger wraps slog.Logger with adapter-specific functionality.
//
// On top of structured logging it carries the discovery verbosity: in
// verbose mode every inbound bus message is dumped at debug level.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
	dumpMessages bool
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering, raised to debug when verbosity is debug or verbose
//   - Default fields (service name, version)
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - verbosity: Discovery verbosity (normal, debug, verbose)
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, verbosity, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return newWithWriter(output, cfg, verbosity, version)
}

// newWithWriter builds a Logger writing to w.
func newWithWriter(w io.Writer, cfg config.LoggingConfig, verbosity, version string) *Logger {
	level := parseLevel(cfg.Level)
	switch verbosity {
	case config.VerbosityDebug, config.VerbosityVerbose:
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{
		Logger:       slog.New(handler),
		dumpMessages: verbosity == config.VerbosityVerbose,
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // Includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:       l.Logger.With(args...),
		dumpMessages: l.dumpMessages,
	}
}

// DumpsMessages reports whether verbose message dumps are enabled.
func (l *Logger) DumpsMessages() bool {
	return l.dumpMessages
}

// DumpMessage logs a raw bus message when verbose mode is enabled.
// Payloads longer than maxDumpedPayload bytes are truncated.
func (l *Logger) DumpMessage(topic string, payload []byte) {
	if !l.dumpMessages {
		return
	}
	truncated := len(payload) > maxDumpedPayload
	if truncated {
		payload = payload[:maxDumpedPayload]
	}
	l.Debug("mqtt message",
		"topic", topic,
		"payload", string(payload),
		"truncated", truncated,
	)
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level.
// It should only be used during early startup before config is available.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, config.VerbosityNormal, "dev")
}
