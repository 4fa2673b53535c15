package httpclient

import (
	"context"
	"net/http"
)

type (
	requestIDKey     struct{}
	correlationIDKey struct{}
)

// WithRequestID stores the inbound request ID for forwarding as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// WithCorrelationID stores the correlation ID for forwarding as
// X-Correlation-ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// forwardedIDs maps context keys onto the headers they travel in.
var forwardedIDs = []struct {
	key    any
	header string
}{
	{requestIDKey{}, "X-Request-ID"},
	{correlationIDKey{}, "X-Correlation-ID"},
}

// stampHeaders sets the store credentials and the IDs carried by ctx on req.
// The hosted store wants the key both as apikey and as a bearer token.
func (c *Client) stampHeaders(ctx context.Context, req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for _, f := range forwardedIDs {
		if id, _ := ctx.Value(f.key).(string); id != "" {
			req.Header.Set(f.header, id)
		}
	}
}
