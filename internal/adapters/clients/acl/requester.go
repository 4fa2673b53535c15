package acl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/httpclient"
)

// Call describes one row-store request.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	// Prefer is sent as the Prefer header, e.g. "return=representation".
	Prefer string
	// Body, when non-nil, is sent as JSON.
	Body any
	// Want is the expected status code.
	Want int
	// Out, when non-nil, receives the decoded JSON response.
	Out any
}

// target is the method and path used in errors and logs; the query holds
// filter values and is left out.
func (c Call) target() string { return c.Method + " " + c.Path }

// Requester runs Calls through the row-store client.
type Requester struct {
	client *httpclient.Client
	logger *slog.Logger
}

// NewRequester wraps client.
func NewRequester(client *httpclient.Client, logger *slog.Logger) *Requester {
	return &Requester{client: client, logger: logger}
}

// Do sends c. Any status other than c.Want becomes a domain error through
// ResponseError; a call that got no response at all becomes a transport
// error.
func (r *Requester) Do(ctx context.Context, c Call) error {
	req, err := r.build(ctx, c)
	if err != nil {
		return err
	}

	// After exhausted retries the client returns the last response along
	// with its error; the response is the better explanation.
	resp, err := r.client.Do(ctx, req)
	if resp == nil {
		r.logger.WarnContext(ctx, "row-store call failed",
			slog.String("call", c.target()),
			slog.Any("error", err),
		)
		return transportError(c.Method, c.Path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != c.Want {
		rerr := ResponseError(resp)
		r.logger.WarnContext(ctx, "row-store call rejected",
			slog.String("call", c.target()),
			slog.Int("status", resp.StatusCode),
			slog.Int("want_status", c.Want),
			slog.Any("error", rerr),
		)
		return rerr
	}
	if c.Out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(c.Out); err != nil {
		return fmt.Errorf("decoding %s response: %w", c.target(), err)
	}
	return nil
}

func (r *Requester) build(ctx context.Context, c Call) (*http.Request, error) {
	path := c.Path
	if len(c.Query) > 0 {
		path += "?" + c.Query.Encode()
	}

	var body io.Reader
	if c.Body != nil {
		b, err := json.Marshal(c.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", c.target(), err)
		}
		body = bytes.NewReader(b)
	}

	req, err := r.client.NewRequest(ctx, c.Method, path, body)
	if err != nil {
		return nil, err
	}
	if c.Prefer != "" {
		req.Header.Set("Prefer", c.Prefer)
	}
	return req, nil
}
