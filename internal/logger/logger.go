package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/turbocompute/gpulogs/internal/constants"

	"github.com/lmittmann/tint"
)

// Initialize sets up the global slog logger based on the environment
func Initialize(env constants.Environment, level slog.Level) *slog.Logger {
	logger := New(os.Stderr, env, level)
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "env", env, "level", level)

	return logger
}

// New builds a logger writing to w without touching the global default.
// Production gets JSON records; every other environment gets tinted text.
func New(w io.Writer, env constants.Environment, level slog.Level) *slog.Logger {
	var handler slog.Handler

	if env == constants.Production {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    os.Getenv("NO_COLOR") != "",
		})
	}

	return slog.New(handler)
}

// ParseLevel returns the slog.Level named by s.
// Defaults to INFO if the level string is invalid.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
