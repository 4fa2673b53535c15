package health_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/health"
)

type mockChecker struct {
	mock.Mock
}

func newMockChecker(t *testing.T, name string) *mockChecker {
	t.Helper()
	m := &mockChecker{}
	m.On("Name").Return(name).Maybe()
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockChecker) Name() string {
	return m.Called().String(0)
}

func (m *mockChecker) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// countingChecker counts its runs and can block until released.
type countingChecker struct {
	name    string
	calls   atomic.Int32
	err     error
	release chan struct{}
}

func (c *countingChecker) Name() string { return c.name }

func (c *countingChecker) HealthCheck(ctx context.Context) error {
	c.calls.Add(1)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.err
}

func TestCheckAll_Empty(t *testing.T) {
	t.Parallel()

	got := health.New().CheckAll(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCheckAll_ReportsEachChecker(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("connection refused")
	store := newMockChecker(t, "store")
	store.On("HealthCheck", mock.Anything).Return(nil).Once()
	db := newMockChecker(t, "postgres")
	db.On("HealthCheck", mock.Anything).Return(dbErr).Once()

	r := health.New()
	r.Register(store)
	r.Register(db)

	got := r.CheckAll(context.Background())
	require.Len(t, got, 2)
	assert.NoError(t, got["store"])
	assert.ErrorIs(t, got["postgres"], dbErr)
}

func TestCheckAll_ReplacesSameName(t *testing.T) {
	t.Parallel()

	first := &countingChecker{name: "store", err: errors.New("first")}
	second := &countingChecker{name: "store"}

	r := health.New()
	r.Register(first)
	r.Register(second)

	assert.Equal(t, map[string]error{"store": nil}, r.CheckAll(context.Background()))
	assert.Zero(t, first.calls.Load())
}

func TestCheckAll_BoundsEachCheck(t *testing.T) {
	t.Parallel()

	hung := &countingChecker{name: "row-store", release: make(chan struct{})}
	r := health.New(health.WithCheckTimeout(20 * time.Millisecond))
	r.Register(hung)

	got := r.CheckAll(context.Background())
	assert.ErrorIs(t, got["row-store"], context.DeadlineExceeded)
}

func TestCheckAll_CallerCancellationDoesNotFailChecks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := health.New()
	r.Register(&countingChecker{name: "store"})
	assert.NoError(t, r.CheckAll(ctx)["store"])
}

func TestCheckAll_PanicIsFailure(t *testing.T) {
	t.Parallel()

	c := newMockChecker(t, "store")
	c.On("HealthCheck", mock.Anything).Run(func(mock.Arguments) { panic("nil pool") }).Return(nil)

	r := health.New()
	r.Register(c)

	err := r.CheckAll(context.Background())["store"]
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil pool")
}

func TestCheckAll_CacheTTL(t *testing.T) {
	t.Parallel()

	c := &countingChecker{name: "store"}
	r := health.New(health.WithCacheTTL(time.Hour))
	r.Register(c)

	for range 3 {
		r.CheckAll(context.Background())
	}
	assert.Equal(t, int32(1), c.calls.Load())

	// Registering invalidates the cache.
	r.Register(&countingChecker{name: "postgres"})
	got := r.CheckAll(context.Background())
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), c.calls.Load())
}

func TestCheckAll_ResultsBelongToCaller(t *testing.T) {
	t.Parallel()

	r := health.New(health.WithCacheTTL(time.Hour))
	r.Register(&countingChecker{name: "store"})

	first := r.CheckAll(context.Background())
	first["store"] = errors.New("scribbled")
	assert.NoError(t, r.CheckAll(context.Background())["store"])
}

func TestCheckAll_ConcurrentCallersShareARun(t *testing.T) {
	t.Parallel()

	c := &countingChecker{name: "store", release: make(chan struct{})}
	r := health.New(health.WithCheckTimeout(0))
	r.Register(c)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.CheckAll(context.Background())["store"])
		}()
	}

	require.Eventually(t, func() bool { return c.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(c.release)
	wg.Wait()

	assert.LessOrEqual(t, c.calls.Load(), int32(5))
	assert.GreaterOrEqual(t, c.calls.Load(), int32(1))
}

func TestCheckAll_ConcurrentRegisterAndCheck(t *testing.T) {
	t.Parallel()

	r := health.New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				r.Register(&countingChecker{name: "store"})
				return
			}
			r.CheckAll(context.Background())
		}()
	}
	wg.Wait()
}
