// Package log is a thin key/value logging facade over zerolog.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.Nop()

// Setup configures the package logger to write human-readable output to
// stderr. Verbose enables debug level.
func Setup(verbose bool) {
	logger = newLogger(os.Stderr, verbose, false)
}

// SetupWriter is like Setup but writes uncolored output to w
func SetupWriter(w io.Writer, verbose bool) {
	logger = newLogger(w, verbose, true)
}

func newLogger(w io.Writer, verbose, noColor bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: noColor}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Debug logs msg with alternating key/value pairs
func Debug(msg string, args ...any) {
	logger.Debug().Fields(args).Msg(msg)
}

// Info logs msg with alternating key/value pairs
func Info(msg string, args ...any) {
	logger.Info().Fields(args).Msg(msg)
}

// Warn logs msg with alternating key/value pairs
func Warn(msg string, args ...any) {
	logger.Warn().Fields(args).Msg(msg)
}

// Error logs msg with alternating key/value pairs
func Error(msg string, args ...any) {
	logger.Error().Fields(args).Msg(msg)
}
