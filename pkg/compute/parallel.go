package compute

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ForEachBatch runs fn once per batch element, fanned out across the
// context's workers. fn owns every output region of its batch element, so no
// two invocations write the same memory.
//
// ctx cancellation stops the scheduling of further batch elements; units
// already running complete before ForEachBatch returns.
func (c *Context) ForEachBatch(ctx context.Context, batches int, fn func(b int) error) error {
	if batches <= 0 {
		return nil
	}
	if batches == 1 || c.workers == 1 {
		for b := 0; b < batches; b++ {
			if err := fn(b); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for b := 0; b < batches; b++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := fn(b); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceExecution, err)
	}
	return ctx.Err()
}

// ForEachRange splits [0, n) into contiguous chunks and runs fn on each,
// fanned out across the context's workers. Chunks never overlap, so fn may
// write any output element indexed by its range without synchronization.
func (c *Context) ForEachRange(ctx context.Context, n int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}

	chunks := c.workers * 4
	if chunks > n {
		chunks = n
	}
	if chunks <= 1 {
		return fn(0, n)
	}
	size := (n + chunks - 1) / chunks

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(lo, hi)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceExecution, err)
	}
	return ctx.Err()
}
