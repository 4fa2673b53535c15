package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
)

// problems collects validation failures for one Validate call.
type problems []error

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Errorf(format, args...))
	}
}

func (p *problems) oneOf(key, got string, allowed ...string) {
	p.check(slices.Contains(allowed, got), "%s must be one of %v, got %q", key, allowed, got)
}

// Validate reports every invalid setting at once. Client settings are only
// checked when the rest backend will use them.
func (c *Config) Validate() error {
	var p problems

	s := c.Server
	p.check(s.Port >= 1 && s.Port <= 65535, "server.port must be between 1 and 65535, got %d", s.Port)
	p.check(s.ReadTimeout > 0, "server.read_timeout must be positive")
	p.check(s.WriteTimeout > 0, "server.write_timeout must be positive")
	p.check(s.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")

	p.oneOf("log.level", c.Log.Level, "debug", "info", "warn", "error")
	p.oneOf("log.format", c.Log.Format, "json", "text")

	c.Store.validate(&p)
	if c.Store.Backend == BackendREST {
		c.Client.validate(&p)
	}

	p.check(c.Tracker.MaxConcurrency >= 1, "tracker.max_concurrency must be >= 1, got %d", c.Tracker.MaxConcurrency)
	p.check(c.Tracker.WatchBuffer >= 1, "tracker.watch_buffer must be >= 1, got %d", c.Tracker.WatchBuffer)

	if t := c.Telemetry; t.Enabled {
		p.oneOf("telemetry.exporter", t.Exporter, "stdout", "otlp")
		p.check(t.Exporter != "otlp" || t.Endpoint != "", "telemetry.endpoint must not be empty when exporter is otlp")
		p.check(t.SampleRate >= 0 && t.SampleRate <= 1, "telemetry.sample_rate must be between 0 and 1, got %g", t.SampleRate)
	}

	return errors.Join(p...)
}

func (s *StoreConfig) validate(p *problems) {
	p.oneOf("store.backend", s.Backend, BackendMemory, BackendSQLite, BackendPostgres, BackendREST)
	if s.Backend == BackendSQLite || s.Backend == BackendPostgres {
		p.check(s.DSN != "", "store.dsn must not be empty for backend %q", s.Backend)
	}
	p.check(s.FeedBuffer >= 1, "store.feed_buffer must be >= 1, got %d", s.FeedBuffer)
}

func (cl *ClientConfig) validate(p *problems) {
	p.check(cl.BaseURL != "", "client.base_url must not be empty")
	p.check(cl.Timeout > 0, "client.timeout must be positive")
	p.check(cl.Retry.MaxAttempts >= 1, "client.retry.max_attempts must be >= 1, got %d", cl.Retry.MaxAttempts)
	p.check(cl.Retry.Multiplier > 0, "client.retry.multiplier must be positive, got %g", cl.Retry.Multiplier)
	p.check(cl.CircuitBreaker.MaxFailures >= 1, "client.circuit_breaker.max_failures must be >= 1, got %d",
		cl.CircuitBreaker.MaxFailures)
	p.check(cl.RateLimit.RequestsPerSecond >= 0, "client.rate_limit.requests_per_second must not be negative, got %g",
		cl.RateLimit.RequestsPerSecond)
	if cl.RealtimeURL != "" {
		u, err := url.Parse(cl.RealtimeURL)
		p.check(err == nil && (u.Scheme == "ws" || u.Scheme == "wss"),
			"client.realtime_url must be a ws:// or wss:// URL, got %q", cl.RealtimeURL)
	}
}
