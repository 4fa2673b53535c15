// Package health runs the readiness checks of the tracker's dependencies:
// the stage store, the row store's circuit breaker and SQL databases.
package health

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

var _ ports.HealthRegistry = (*Registry)(nil)

// DefaultCheckTimeout bounds each individual check.
const DefaultCheckTimeout = 2 * time.Second

// Registry holds one checker per name. Checks run concurrently, each under
// its own timeout. Concurrent CheckAll calls share a single run, and with a
// cache TTL a finished run is reused until it goes stale.
type Registry struct {
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group

	mu       sync.Mutex
	checkers map[string]ports.HealthChecker
	last     map[string]error
	lastAt   time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithCheckTimeout overrides DefaultCheckTimeout. Non-positive values
// disable the per-check timeout.
func WithCheckTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// WithCacheTTL reuses results for d, sparing the stores from probes that
// arrive in bursts. Zero, the default, runs the checks on every call.
func WithCacheTTL(d time.Duration) Option {
	return func(r *Registry) { r.ttl = d }
}

// New returns an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		timeout:  DefaultCheckTimeout,
		now:      time.Now,
		checkers: make(map[string]ports.HealthChecker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds checker, replacing any checker of the same name, and drops
// cached results.
func (r *Registry) Register(checker ports.HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[checker.Name()] = checker
	r.last = nil
}

// CheckAll returns each checker's result keyed by name; nil means healthy.
// The returned map belongs to the caller.
func (r *Registry) CheckAll(ctx context.Context) map[string]error {
	r.mu.Lock()
	if r.last != nil && r.now().Sub(r.lastAt) < r.ttl {
		cached := maps.Clone(r.last)
		r.mu.Unlock()
		return cached
	}
	r.mu.Unlock()

	v, _, _ := r.group.Do("all", func() (any, error) {
		return r.run(context.WithoutCancel(ctx)), nil
	})
	return maps.Clone(v.(map[string]error))
}

func (r *Registry) run(ctx context.Context) map[string]error {
	r.mu.Lock()
	checkers := maps.Clone(r.checkers)
	r.mu.Unlock()

	var (
		mu      sync.Mutex
		results = make(map[string]error, len(checkers))
		g       errgroup.Group
	)
	for name, c := range checkers {
		g.Go(func() error {
			err := r.check(ctx, c)
			mu.Lock()
			results[name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	r.last, r.lastAt = results, r.now()
	r.mu.Unlock()
	return results
}

// check runs one checker; a panicking checker is reported as failing.
func (r *Registry) check(ctx context.Context, c ports.HealthChecker) (err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s check panicked: %v", c.Name(), p)
		}
	}()
	return c.HealthCheck(ctx)
}
