package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/logging"
)

// Logging gives every request a child logger tagged with its request and
// correlation IDs, stores it with logging.WithLogger for handlers and the
// services below them, and writes one line when the request finishes.
//
// The finishing line carries the matched route and, for owner-scoped
// routes, the owner ID. Server errors log at ERROR and client errors at
// WARN. For a feed connection the line is written when the socket closes.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			child := logger.With(
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("correlation_id", CorrelationIDFromContext(ctx)),
			)
			ctx = logging.WithLogger(ctx, child)

			if child.Enabled(ctx, slog.LevelDebug) {
				child.DebugContext(ctx, "request started",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					redactedHeaders(r.Header),
				)
			}

			rw := record(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("route", routePattern(r)),
				slog.Int("status", rw.status),
				slog.Int64("bytes", rw.bytes),
				slog.Duration("duration", time.Since(start)),
			}
			if owner := ownerParam(r); owner != "" {
				attrs = append(attrs, slog.String("owner_id", owner))
			}

			msg := "request completed"
			if rw.status == http.StatusSwitchingProtocols {
				msg = "feed closed"
			}
			child.LogAttrs(ctx, statusLevel(rw.status), msg, attrs...)
		})
	}
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
