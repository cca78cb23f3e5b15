package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// logLevel backs the default logger so the level can change at runtime when
// the config file is edited.
var logLevel = new(slog.LevelVar)

// ParseLevel maps a config level string to a slog.Level; unknown values are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds the slog handler for format writing to w.
//
// format: "json"   → JSONHandler (production)
//
//	"pretty" → tint coloured handler (local development)
//	anything else → TextHandler
func NewHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "pretty":
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
}

// SetupLogger installs the default slog logger for the configured format and
// level. All slog.Info/Warn/Error calls elsewhere use it.
func SetupLogger(format, level string) {
	logLevel.Set(ParseLevel(level))
	slog.SetDefault(slog.New(NewHandler(os.Stdout, format, logLevel)))
	slog.Info("logger initialised", "format", format, "level", logLevel.Level().String())
}

// SetLogLevel changes the level of the default logger in place
func SetLogLevel(level string) {
	lvl := ParseLevel(level)
	if lvl != logLevel.Level() {
		logLevel.Set(lvl)
		slog.Info("log level changed", "level", lvl.String())
	}
}

// LogLevel returns the current level of the default logger
func LogLevel() slog.Level {
	return logLevel.Level()
}
