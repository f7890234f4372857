// Package debug carries the debug flag on the context and configures slog.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const debugKey contextKey = "debug_enabled"

// WithDebug returns a context with debug mode enabled/disabled.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, debugKey, enabled)
}

// IsEnabled returns true if debug mode is enabled in the context.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(debugKey).(bool); ok {
		return v
	}
	return false
}

// Options selects the log level and format.
type Options struct {
	Debug bool
	// Verbose lowers the level to Info so connection lifecycle is visible.
	Verbose bool
	JSON    bool
}

// Level returns the slog level the options imply.
func (o Options) Level() slog.Level {
	switch {
	case o.Debug:
		return slog.LevelDebug
	case o.Verbose:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// NewLogger builds a logger writing to w.
func NewLogger(w io.Writer, o Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: o.Level()}
	if o.JSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// SetupLogger installs the default logger on stderr.
func SetupLogger(o Options) {
	slog.SetDefault(NewLogger(os.Stderr, o))
}
