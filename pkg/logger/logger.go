package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns the process logger: JSON to stdout, debug level for local/dev.
// level, when set (debug|info|warn|error), overrides the env default.
func New(appEnv, level string) *slog.Logger {
	return newWithWriter(os.Stdout, appEnv, level)
}

func newWithWriter(w io.Writer, appEnv, level string) *slog.Logger {
	lvl := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		lvl = slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("service", "autodialer", "env", appEnv)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	return FromOr(ctx, slog.Default())
}

// FromOr gets a logger from context, falling back to fallback.
func FromOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return fallback
}
