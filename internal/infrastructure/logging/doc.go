// Package logging provides structured logging for the discovery adapter.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml together with
// the discovery verbosity:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//	discovery:
//	  verbosity: "normal" # normal, debug, verbose
//
// Verbosity debug lowers the level to debug. Verbose additionally dumps
// every inbound bus message.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, cfg.Discovery.Verbosity, "1.0.0")
//	logger.Info("connected", "broker", "tcp://127.0.0.1:1883")
//	logger.DumpMessage(topic, payload)
//
// # Security
//
// Never log broker passwords or the JWT secret.
package logging
