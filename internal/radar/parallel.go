// SPDX-License-Identifier: MIT
package radar

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn(0..n-1) on at most workers goroutines. Each index is only
// started if the context is still live, so cancellation takes effect at trace
// granularity. A cancelled parent context always reports ErrCancelled.
func forEach(ctx context.Context, n, workers int, fn func(i int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	err := g.Wait()

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	return err
}
