// Package logging provides structured logging for DEWHOME Core.
//
// It wraps the standard log/slog package so every component logs with
// the same handler, level and default fields (service, site, version).
// Values of credential keys such as password, token and secret are
// replaced with [REDACTED].
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, cfg.Site.ID, "1.0.0")
//	logger.Info("starting service", "port", 5000)
//	logger.Component("gpio").Error("write failed", "pin", 17, "error", err)
package logging
