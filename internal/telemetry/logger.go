package telemetry

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is text (colourised) or json.
	Format string
	// NoColor disables colours in text format.
	NoColor bool
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, c LogConfig) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil {
		lvl = slog.LevelInfo
	}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
		NoColor:    c.NoColor,
	}))
}
