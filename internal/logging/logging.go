// Package logging constructs the process-wide zerolog.Logger from the
// LOG_LEVEL / LOG_PRETTY environment variables. Unlike a package-level
// global, the constructed Logger is a value the composition root passes
// into every component as a field.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a Logger from the given level string ("debug", "info",
// "warn", "error"; unrecognised or empty defaults to "info") and whether
// to render human-readable console output instead of JSON.
func New(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out zerolog.ConsoleWriter
	logger := zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	}
	return logger
}
