// Package logging builds the service's slog loggers and carries the
// request-scoped logger through contexts.
//
//	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
//	ctx = logging.WithLogger(ctx, logger.With(slog.String("owner_id", id)))
//	logging.FromContext(ctx).InfoContext(ctx, "stage added")
//
// Error lines name the operation, the owner and entity IDs involved, and the
// full error chain:
//
//	logger.ErrorContext(ctx, "failed to toggle task",
//	    slog.String("operation", "ToggleTask"),
//	    slog.String("owner_id", ownerID),
//	    slog.String("task_id", id),
//	    slog.Any("error", err),
//	)
//
// Every handler returned by New scrubs credentials (see redact.go) before
// anything is written.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

type contextKey struct{}

// New returns a logger writing to w.
//
// level is any name slog.Level accepts ("debug", "INFO", "warn+2");
// anything else means info. Debug loggers also record the source
// location. format "text" selects the logfmt-style handler and everything
// else JSON.
func New(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   lvl <= slog.LevelDebug,
		ReplaceAttr: redactor(),
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// FormatFor picks "text" when f is an interactive terminal and "json"
// otherwise, so piped trackerctl output stays machine readable.
func FormatFor(f *os.File) string {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return "text"
	}
	return "json"
}

// WithLogger stores logger on ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
