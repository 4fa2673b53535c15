package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/dto"
)

// errInternalServer is what the client sees for a recovered panic. The panic
// value and stack only go to the log.
var errInternalServer = errors.New("internal server error")

// Recovery turns a handler panic into a logged stack trace and a 500
// problem response. It sits outermost, so the request ID is read back from
// the response header set further in. When the handler already started its
// response, or hijacked the connection for a feed, only the log line is
// written. http.ErrAbortHandler is re-raised so net/http aborts quietly.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := record(w)

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				logger.ErrorContext(r.Context(), "panic recovered",
					slog.String("panic", fmt.Sprint(v)),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("route", routePattern(r)),
					slog.String("owner_id", ownerParam(r)),
					slog.String("request_id", rw.Header().Get(headerRequestID)),
				)

				if !rw.started {
					dto.WriteProblem(rw, r, errInternalServer)
				}
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
