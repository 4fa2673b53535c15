package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/httpclient"
)

// X-Request-ID names a single exchange. X-Correlation-ID ties together the
// requests a client makes for one user action, for example applying a
// template and then re-listing stages. Both are echoed on the response and
// forwarded on row-store calls.
const (
	headerRequestID     = "X-Request-ID"
	headerCorrelationID = "X-Correlation-ID"

	maxIDLength = 128
)

type idsKey struct{}

type requestIDs struct {
	request     string
	correlation string
}

// WithRequestIDs stores both identifiers on ctx and registers them with
// httpclient so outbound row-store requests carry the same headers.
func WithRequestIDs(ctx context.Context, requestID, correlationID string) context.Context {
	ctx = context.WithValue(ctx, idsKey{}, requestIDs{request: requestID, correlation: correlationID})
	ctx = httpclient.WithRequestID(ctx, requestID)
	return httpclient.WithCorrelationID(ctx, correlationID)
}

// RequestIDFromContext returns the request ID, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	ids, _ := ctx.Value(idsKey{}).(requestIDs)
	return ids.request
}

// CorrelationIDFromContext returns the correlation ID, or "" outside a
// request.
func CorrelationIDFromContext(ctx context.Context) string {
	ids, _ := ctx.Value(idsKey{}).(requestIDs)
	return ids.correlation
}

// RequestIDs assigns the request and correlation IDs. A client-supplied
// value is kept when it is a short printable token; otherwise the request
// gets a fresh UUID and the correlation ID falls back to the request ID.
func RequestIDs() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(headerRequestID)
			if !usableID(reqID) {
				reqID = uuid.NewString()
			}
			corrID := r.Header.Get(headerCorrelationID)
			if !usableID(corrID) {
				corrID = reqID
			}

			w.Header().Set(headerRequestID, reqID)
			w.Header().Set(headerCorrelationID, corrID)
			next.ServeHTTP(w, r.WithContext(WithRequestIDs(r.Context(), reqID, corrID)))
		})
	}
}

// usableID rejects empty, oversized and non-printable IDs so that a client
// cannot smuggle line breaks or control bytes into log lines.
func usableID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for i := range len(id) {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
