package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dewansh/dewhome-core/internal/infrastructure/config"
)

const (
	serviceName = "dewhome"
	redacted    = "[REDACTED]"
)

// sensitiveKeys are attribute keys whose values never reach the output.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"password_hash": true,
	"token":         true,
	"access_token":  true,
	"secret":        true,
	"authorization": true,
}

// Logger is the slog.Logger shared by every DEWHOME component.
type Logger struct {
	*slog.Logger
}

// New builds a Logger for cfg writing to stdout or stderr.
// Every entry carries the service, site and version.
func New(cfg config.LoggingConfig, site, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(w, cfg, site, version)
}

// NewWithWriter is New with an explicit destination; cfg.Output is ignored.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, site, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redact,
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	attrs := []slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	}
	if site != "" {
		attrs = append(attrs, slog.String("site", site))
	}
	return &Logger{Logger: slog.New(h.WithAttrs(attrs))}
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// parseLevel maps debug, warn/warning and error; anything else is info.
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

// With returns a child Logger carrying args on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags entries with the subsystem that emitted them, e.g.
// "scheduler", "gpio" or "mqtt".
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the bootstrap logger used until config.yaml is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "", "dev")
}

// Discard drops every entry.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
