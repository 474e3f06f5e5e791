// Package logger builds the structured zerolog.Logger shared by every
// component of the compliance engine.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the base logger's verbosity and output format.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // console-pretty output for local development
}

// New builds the base logger. Every repository/service then derives its own
// scoped logger via log.With().Str("component", "...").Logger().
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

// SetGlobalLogger installs l as the package-level logger used by any code
// that logs through zerolog's global log.Logger.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
