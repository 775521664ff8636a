package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the service logger, configured from LOG_FORMAT and
// LOG_LEVEL. Every record carries the service name so mixed log streams
// stay attributable.
func NewLogger(cfg *Config) *slog.Logger {
	return slog.New(newLogHandler(cfg, os.Stdout)).With(slog.String("service", "permitd"))
}

func newLogHandler(cfg *Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{AddSource: true, Level: logLevel(cfg)}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func logLevel(cfg *Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
