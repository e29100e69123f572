// Package logging provides structured logging for PestGuard Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting orchestrator", "sensors", 4)
//	logger.Error("failed to connect", "error", err)
//
// # Domain packages
//
// The rig's domain packages (actuator, sensor, dispatch, orchestrator)
// do not import this package. Each declares its own minimal Logger
// interface with the Debug/Info/Warn/Error(msg string, args ...any)
// shape and defaults to a no-op implementation; *Logger satisfies all
// of them, so the composition root injects one Component logger per
// subsystem without coupling the domain to the logging stack.
package logging
