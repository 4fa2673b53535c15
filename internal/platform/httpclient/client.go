// Package httpclient is the outbound transport for the hosted row store.
// Every call passes, in order, through a circuit breaker, an optional rate
// limiter, credential and ID headers, an OpenTelemetry client span and the
// retry policy.
//
//	rows := httpclient.New(&cfg.Client, "row-store", metrics, logger)
//	req, _ := rows.NewRequest(ctx, http.MethodGet, "/stages?owner_id=eq.u1", nil)
//	resp, err := rows.Do(ctx, req)
//
// IDs placed on the context with WithRequestID and WithCorrelationID are
// forwarded as headers.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/config"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
)

// Client talks to one row-store deployment. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	serviceName string
	breaker     *gobreaker.CircuitBreaker[struct{}]
	limiter     *rate.Limiter // nil disables limiting
	retry       retryPolicy
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

// New builds a Client. serviceName labels spans, metrics and health
// results; metrics may be nil.
func New(cfg *config.ClientConfig, serviceName string, metrics *telemetry.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		serviceName: serviceName,
		breaker:     newBreaker(serviceName, cfg.CircuitBreaker, logger),
		retry:       newRetryPolicy(cfg.Retry),
		metrics:     metrics,
		logger:      logger,
	}
	if rl := cfg.RateLimit; rl.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), max(rl.Burst, 1))
	}
	return c
}

// Do sends req. On success resp carries an open body the caller closes.
// When retries run out on a retryable status both resp and err are set and
// the caller still closes resp.Body. Breaker rejections and transport
// failures return a nil resp.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()

	var resp *http.Response
	_, err := c.breaker.Execute(func() (struct{}, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return struct{}{}, err
			}
		}
		c.stampHeaders(ctx, req)

		spanCtx, span := c.traceRequest(ctx, req)
		req = req.WithContext(spanCtx)
		err := c.doWithRetry(spanCtx, req, &resp)
		endSpan(span, resp, err)
		return struct{}{}, err
	})

	c.record(ctx, req.Method, start, resp, err)
	return resp, err
}

// NewRequest builds a request for path under the base URL. A non-nil body
// is sent as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", c.serviceName, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// BaseURL is the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Name is the service name given to New. With HealthCheck it makes the
// Client a ports.HealthChecker.
func (c *Client) Name() string { return c.serviceName }
