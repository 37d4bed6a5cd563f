// Package logging provides structured logging for the telemetry agent.
//
// This package wraps Go's standard log/slog package so every subsystem
// (serial ingestion, sink loops, dashboard) logs the same way.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Per-subsystem child loggers via Component
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
//	sinkLog := logger.Component("sink").With("sink", "mqtt")
//	sinkLog.Warn("publish failed", "error", err, "retry_in", "10s")
//
// Never log broker passwords or InfluxDB tokens.
package logging
