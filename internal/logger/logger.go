// Package logger configures the shared slog logger and its context
// helpers.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/humancheck/humancheck/internal/config"
)

// New builds the process logger: JSON records on stdout, tagged with the
// configured service name.
func New(cfg config.Logging) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: Level(cfg.Level),
	}))
	if cfg.Service != "" {
		log = log.With("service", cfg.Service)
	}
	return log
}

// Level maps a config level string to a slog.Level. Unknown values fall
// back to info.
func Level(s string) slog.Level {
	switch strings.ToLower(s) {
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
