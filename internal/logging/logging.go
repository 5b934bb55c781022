// Package logging constructs the process-wide zerolog.Logger, following
// the teacher's cmd/root.go setupLog/debug-log-file conventions.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the aquaserver process logger: human-readable console
// output, debug-level when debug is true, info otherwise.
func New(debug bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}
