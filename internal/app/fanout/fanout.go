// Package fanout runs the per-row store calls of one bulk tracker operation
// (reorders, cascaded deletes, duplicate cleanup) with bounded concurrency.
package fanout

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BatchError reports the items of an Each call that failed. It unwraps to
// every item error, so errors.Is and errors.As see through it.
type BatchError struct {
	Total int
	Errs  []error
}

func (e *BatchError) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	return fmt.Sprintf("%d of %d items failed: %v", len(e.Errs), e.Total, errors.Join(e.Errs...))
}

func (e *BatchError) Unwrap() []error { return e.Errs }

// Each calls fn for every item with at most limit calls in flight (no limit
// when limit < 1) and waits for all of them. A failure does not stop the
// other items. Items not yet started when ctx ends fail with ctx.Err()
// without calling fn. Failures are reported in input order.
func Each[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}

	errs := make([]error, len(items))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &BatchError{Total: len(items), Errs: failed}
}
