package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Each runs action for every item in its own goroutine, at most limit at a
// time (limit <= 0 means no limit). The context handed to action is cancelled
// on the first error, which Each returns after all goroutines finish.
func Each[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	errGroup, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		errGroup.SetLimit(limit)
	}

	for _, value := range items {
		errGroup.Go(func() error {
			return action(ctx, value)
		})
	}

	return errGroup.Wait()
}

// Map applies mapFn to each item concurrently, preserving order. On error the
// partial results are returned alongside the first error.
func Map[T any, R any](ctx context.Context, items []T, limit int, mapFn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	errGroup, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		errGroup.SetLimit(limit)
	}

	for idx, value := range items {
		errGroup.Go(func() error {
			r, err := mapFn(ctx, value)
			out[idx] = r
			return err
		})
	}

	err := errGroup.Wait()
	return out, err
}
