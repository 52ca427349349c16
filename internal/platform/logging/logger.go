package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey struct{}

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Setup replaces the global logger with a JSON logger writing to w at the given level.
func Setup(w io.Writer, level string) *slog.Logger {
	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
	slog.SetDefault(logger)
	return logger
}

func Logger() *slog.Logger {
	return logger
}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped logger, or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logger
	}
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logger
}

// RequestLogger attaches a logger carrying chi's request id to every request.
// It must run after middleware.RequestID.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logger
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			l = l.With("request_id", reqID)
		}
		next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), l)))
	})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
