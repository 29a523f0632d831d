package observability

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// defaultLevel holds the process-wide logger level. Seeded from the
// STOK_LOG_LEVEL env var so loggers built before config load behave, then
// overridden by SetLogLevel once the config is in.
var defaultLevel atomic.Int32

// SetLogLevel sets the level applied by NewLogger. Unrecognized strings
// fall back to info.
func SetLogLevel(s string) {
	defaultLevel.Store(int32(parseLogLevel(s)))
}

// NewLogger creates a structured JSON logger writing to stdout.
// Production default: info.
func NewLogger(component string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(zerolog.Level(defaultLevel.Load())).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// NewLoggerWithLevel creates a logger with an explicit level.
func NewLoggerWithLevel(component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func parseLogLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	defaultLevel.Store(int32(parseLogLevel(os.Getenv("STOK_LOG_LEVEL"))))
}
