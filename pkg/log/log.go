// Package log configures structured logging for docuflow services. All
// services log through slog; each subsystem tags its lines with a module
// attribute so a shared log stream stays filterable.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide slog default: text output on stderr at the
// given level. Unknown level names fall back to info rather than failing
// startup.
func Setup(logLevel string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	})))
}

// WithModule returns a logger tagging every line with the subsystem name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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
