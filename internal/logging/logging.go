// Package logging builds the zerolog logger shared by the collectors and the CLI.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to w. Debug enables the collector
// traces; otherwise only warnings and errors are shown.
func New(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
		NoColor:    true,
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Nop is used by tests and library callers that do not want output
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
