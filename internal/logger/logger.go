package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup returns the process logger. Debug builds get a console writer, debug
// level and stack traces.
func Setup(debug bool) zerolog.Logger {
	return New(os.Stderr, debug)
}

func New(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	if !debug {
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, FormatTimestamp: func(i any) string {
		return time.Now().Format(time.RFC3339)
	}}).Level(level).With().Timestamp().Caller().Stack().Logger()
}

// Component tags every event from log with the emitting component.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
