// Package logging builds the process-wide structured logger. Both binaries
// log JSON lines to stdout and leave collection to the deployment.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger returns a JSON logger tagged with the process name. Debug
// level also records source positions for tracing a misbehaving pipeline
// stage back to its call site.
func NewJSONLogger(process, level string) *slog.Logger {
	lvl := ParseLevel(level)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	})
	return slog.New(handler).With("service", process)
}

// ParseLevel maps a config string onto a slog level. Unknown or blank input
// falls back to info so a typo never silences a process.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
