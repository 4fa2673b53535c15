package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/logging"
)

// feedSensitiveHeaders extends logging.SensitiveHeaders with headers that
// only appear on inbound traffic. Browsers cannot set Authorization on a
// websocket handshake, so feed clients pass tokens as a subprotocol.
var feedSensitiveHeaders = map[string]bool{
	"set-cookie":             true,
	"sec-websocket-key":      true,
	"sec-websocket-protocol": true,
}

const redacted = "[REDACTED]"

// redactedHeaders renders headers as a "headers" group with sorted keys.
// Credential-bearing headers are replaced with [REDACTED] and multi-value
// headers are joined with a comma.
func redactedHeaders(headers http.Header) slog.Attr {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		v := strings.Join(headers[k], ",")
		if lk := strings.ToLower(k); logging.SensitiveHeaders[lk] || feedSensitiveHeaders[lk] {
			v = redacted
		}
		attrs = append(attrs, slog.String(k, v))
	}
	return slog.Group("headers", attrs...)
}
