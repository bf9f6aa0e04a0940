// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger on stderr. Debug enables the debug level,
// which traces every transport transfer and interpreted instruction.
func New(debug bool) zerolog.Logger {
	return NewWriter(os.Stderr, debug)
}

// NewWriter is New with an explicit destination, for tests.
func NewWriter(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
