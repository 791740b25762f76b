// Package logging provides structured logging for Quantum Task Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Any slog.Handler can be wrapped, so the OpenTelemetry log bridge
//     receives the same default fields
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("task claimed", "task_id", id, "device_id", dev)
//
// Never log task code, credentials or bearer tokens.
package logging
