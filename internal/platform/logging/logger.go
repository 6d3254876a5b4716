// Package logging builds the slog loggers of the server and the admin CLI.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pscheid92/portalprefs/internal/platform/correlation"
)

// Setup installs a logger writing to w as the slog default and returns it.
func Setup(w io.Writer, level, format string) *slog.Logger {
	logger := NewLogger(w, level, format)
	slog.SetDefault(logger)
	return logger
}

// NewLogger returns a logger that stamps request, session and user IDs from
// the context. format is "json" or "text"; anything else means text. Debug
// output carries the source location.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(correlation.NewHandler(handler))
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
// Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
