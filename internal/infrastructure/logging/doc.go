// Package logging provides structured logging for boxsync.
//
// It wraps log/slog with:
//
//   - JSON output for production and text output for development
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Redaction of credential attributes (password, token, oesp_token, jwt)
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
//	logger := logging.New(cfg.Logging, version)
//	bridgeLog := logger.Component("horizon")
//	bridgeLog.Info("device registered", "device_id", id)
package logging
