package log

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// Options controls logger construction.
type Options struct {
	// Verbose lowers the level from Info to Debug.
	Verbose bool

	// JSON selects the slog JSON handler.
	JSON bool

	// Color selects the colored tint console handler. Ignored when JSON is set.
	Color bool
}

// NewLogger creates a logger writing to w. Output is always passed through
// a SecureHandler.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	switch {
	case opts.JSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case opts.Color:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	return slog.New(NewSecureHandler(handler))
}
