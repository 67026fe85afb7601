// Package logger provides structured logging configuration shared by every component.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // enable pretty console output
}

// New creates a new structured logger.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetGlobalLogger sets the package-level logger used by third-party code
// that logs through zerolog's global instance.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}

// WithRun returns a child logger scoped to a single pipeline run.
func WithRun(l zerolog.Logger, runID int64, ticker string) zerolog.Logger {
	return l.With().Int64("run_id", runID).Str("ticker", ticker).Logger()
}

// WithSchedule returns a child logger scoped to a single schedule.
func WithSchedule(l zerolog.Logger, scheduleID int64, name string) zerolog.Logger {
	return l.With().Int64("schedule_id", scheduleID).Str("schedule", name).Logger()
}
