package matching

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunBounded runs fn for every item with at most limit calls in flight.
// Each call gets its own timeout derived from ctx. A failing call does not
// cancel its siblings; the returned slice holds each call's error by index.
func RunBounded[T any](ctx context.Context, items []T, limit int, timeout time.Duration, fn func(context.Context, T) error) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			taskCtx, cancel := ctx, context.CancelFunc(func() {})
			if timeout > 0 {
				taskCtx, cancel = context.WithTimeout(ctx, timeout)
			}
			defer cancel()
			errs[i] = fn(taskCtx, item)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
