package fanout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/stage-tracker/internal/app/fanout"
)

func TestEach_NoItems(t *testing.T) {
	t.Parallel()

	err := fanout.Each(context.Background(), 2, []string(nil), func(context.Context, string) error {
		t.Fatal("fn called for an empty batch")
		return nil
	})
	assert.NoError(t, err)
}

func TestEach_VisitsEveryItem(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{-1, 0, 1, 3, 100} {
		var (
			mu   sync.Mutex
			seen = map[string]bool{}
		)
		err := fanout.Each(context.Background(), limit, []string{"k1", "k2", "k3", "k4"}, func(_ context.Context, key string) error {
			mu.Lock()
			defer mu.Unlock()
			seen[key] = true
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, seen, 4, "limit %d", limit)
	}
}

func TestEach_FailuresDoNotStopTheBatch(t *testing.T) {
	t.Parallel()

	errOdd := errors.New("odd position")
	var calls atomic.Int32

	err := fanout.Each(context.Background(), 2, []int{1, 2, 3, 4, 5}, func(_ context.Context, n int) error {
		calls.Add(1)
		if n%2 == 1 {
			return errOdd
		}
		return nil
	})

	assert.Equal(t, int32(5), calls.Load())
	require.ErrorIs(t, err, errOdd)

	var batch *fanout.BatchError
	require.ErrorAs(t, err, &batch)
	assert.Equal(t, 5, batch.Total)
	assert.Len(t, batch.Errs, 3)
	assert.Contains(t, err.Error(), "3 of 5 items failed")
}

func TestEach_SingleFailureKeepsItsMessage(t *testing.T) {
	t.Parallel()

	err := fanout.Each(context.Background(), 4, []string{"a", "b"}, func(_ context.Context, s string) error {
		if s == "b" {
			return errors.New("update task b: conflict")
		}
		return nil
	})
	require.EqualError(t, err, "update task b: conflict")
}

func TestEach_FailuresInInputOrder(t *testing.T) {
	t.Parallel()

	first, second := errors.New("first"), errors.New("second")
	err := fanout.Each(context.Background(), 2, []time.Duration{30 * time.Millisecond, 0}, func(_ context.Context, d time.Duration) error {
		time.Sleep(d)
		if d > 0 {
			return first
		}
		return second
	})

	var batch *fanout.BatchError
	require.ErrorAs(t, err, &batch)
	assert.Equal(t, []error{first, second}, batch.Errs)
}

func TestEach_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	const limit = 3
	var active, peak atomic.Int32

	items := make([]int, 15)
	err := fanout.Each(context.Background(), limit, items, func(context.Context, int) error {
		cur := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestEach_CanceledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	err := fanout.Each(ctx, 1, []int{1, 2, 3}, func(context.Context, int) error {
		calls.Add(1)
		cancel()
		return nil
	})

	assert.Equal(t, int32(1), calls.Load())
	require.ErrorIs(t, err, context.Canceled)

	var batch *fanout.BatchError
	require.ErrorAs(t, err, &batch)
	assert.Len(t, batch.Errs, 2)
}
