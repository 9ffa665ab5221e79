// Package logger configures the process-wide slog logger.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup builds a logger for the given level and format. "text" yields
// colored tint output for terminals; anything else yields JSON.
func Setup(level, format string) *slog.Logger {
	lvl := parseLevel(level)

	if format == "" || format == "text" {
		tintOpts := &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		}
		return slog.New(tint.NewHandler(os.Stderr, tintOpts))
	}

	jsonOpts := &slog.HandlerOptions{Level: lvl}
	return slog.New(slog.NewJSONHandler(os.Stderr, jsonOpts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
