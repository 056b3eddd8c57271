// Package logging builds the slog logger used by the command line.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/activitydb/internal/config"
)

// New creates a logger. Output "stdout" in cfg selects stdout; anything else
// selects stderr.
func New(cfg config.LoggingConfig, stdout, stderr io.Writer) *slog.Logger {
	output := stderr
	if strings.ToLower(cfg.Output) == "stdout" {
		output = stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler.WithAttrs([]slog.Attr{
		slog.String("service", "activitydb"),
	}))
}

// ParseLevel converts a level name to slog.Level.
// Unrecognised names mean info.
func ParseLevel(level string) slog.Level {
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
