package log

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

type Config struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`    // debug, info, warn, error
	Format string `envconfig:"LOG_FORMAT" default:"json" yaml:"format"` // json, console

	// Trace stamps trace_id/span_id on records and flags spans on WARN/ERROR.
	Trace bool `envconfig:"LOG_TRACE" default:"true" yaml:"trace"`
}

func New(cfg Config) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg)
}

// NewWithWriter is New with an explicit destination, e.g. os.Stderr for CLIs.
func NewWithWriter(w io.Writer, cfg Config) *slog.Logger {
	level := ParseLevel(cfg.Level)

	var handler slog.Handler

	if cfg.Format == "console" {
		// Pretty Print for Local Development
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	if cfg.Trace {
		handler = NewOTelHandler(handler)
	}

	return slog.New(handler)
}

func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
