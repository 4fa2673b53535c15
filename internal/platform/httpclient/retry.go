package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/config"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/logging"
)

// jitterFraction bounds the random spread applied to each delay (±25%).
const jitterFraction = 0.25

// retryPolicy decides whether and when a row-store request is attempted
// again.
//
// Inserts are the dangerous case: a POST that reached the store and failed
// afterwards may already have created rows, and replaying it would leave
// duplicates behind. A POST is therefore only replayed when the store is
// known not to have applied it (a refused connection, 429 or 503), unless
// the request is an upsert or carries an Idempotency-Key.
type retryPolicy struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
}

func newRetryPolicy(cfg config.RetryConfig) retryPolicy {
	return retryPolicy{
		maxAttempts:     cfg.MaxAttempts,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
		multiplier:      cfg.Multiplier,
	}
}

// replayable reports whether req may be sent twice without changing the
// outcome.
func replayable(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions,
		http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	case http.MethodPost:
		return req.Header.Get("Idempotency-Key") != "" ||
			strings.Contains(req.Header.Get("Prefer"), "resolution=")
	default:
		return false
	}
}

// rejected reports whether status means the store turned the request away
// before doing any work.
func rejected(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// retryStatus reports whether a response with status warrants another
// attempt of req.
func (p retryPolicy) retryStatus(req *http.Request, status int) bool {
	if rejected(status) {
		return true
	}
	return status >= http.StatusInternalServerError && replayable(req)
}

// retryError reports whether a transport error warrants another attempt of
// req. Cancellation never does. A failed dial never reached the store, so it
// is safe for any method.
func (p retryPolicy) retryError(req *http.Request, err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return replayable(req)
}

// delay returns the wait before retry number attempt (1 for the first
// retry). A Retry-After hint from the previous response wins over the
// computed backoff when it is longer; both are capped at maxInterval.
func (p retryPolicy) delay(attempt int, prev *http.Response) time.Duration {
	d := float64(p.initialInterval) * math.Pow(p.multiplier, float64(attempt-1))
	d = math.Min(d, float64(p.maxInterval))
	d += d * jitterFraction * (2*rand.Float64() - 1)

	if hint := retryAfter(prev, time.Now()); float64(hint) > d {
		d = float64(hint)
	}
	return time.Duration(math.Max(0, math.Min(d, float64(p.maxInterval))))
}

// retryAfter parses a Retry-After header given either in seconds or as an
// HTTP date. It returns zero when the header is missing or unusable.
func retryAfter(resp *http.Response, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// doWithRetry sends req until it gets a final answer or the policy gives
// up. The body is buffered once and replayed on every attempt. The result
// is written to resp rather than returned to keep the bodyclose linter
// quiet; the caller closes it. When attempts run out on a retryable status
// the last response is handed back alongside the error.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request, resp **http.Response) error {
	p := c.retry
	if p.maxAttempts <= 0 {
		return fmt.Errorf("httpclient: maxAttempts must be >= 1, got %d", p.maxAttempts)
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}
		body = b
	}

	var (
		lastErr  error
		lastResp *http.Response
	)
	for attempt := range p.maxAttempts {
		if attempt > 0 {
			wait := p.delay(attempt, lastResp)
			if lastResp != nil {
				_, _ = io.Copy(io.Discard, lastResp.Body)
				_ = lastResp.Body.Close()
				lastResp = nil
			}
			if err := c.pause(ctx, req, attempt, wait, lastErr); err != nil {
				return err
			}
		}

		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if !p.retryError(req, err) {
				return err
			}
			continue
		}
		if !p.retryStatus(req, r.StatusCode) {
			*resp = r
			return nil
		}

		lastErr = fmt.Errorf("HTTP %d from %s", r.StatusCode, c.serviceName)
		lastResp = r
	}

	if lastResp != nil {
		*resp = lastResp
	}
	return lastErr
}

// pause logs the upcoming attempt and sleeps for wait, returning early when
// ctx ends.
func (c *Client) pause(ctx context.Context, req *http.Request, attempt int, wait time.Duration, cause error) error {
	logging.FromContext(ctx).WarnContext(ctx, "retrying row-store request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("peer_service", c.serviceName),
		slog.Int("attempt", attempt+1),
		slog.Int("max_attempts", c.retry.maxAttempts),
		slog.Duration("backoff", wait),
		slog.Any("error", cause),
	)

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
