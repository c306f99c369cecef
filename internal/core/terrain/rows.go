package terrain

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// rowsPerTask keeps tasks large enough that scheduling overhead stays small
// on 64-wide chunks.
const rowsPerTask = 16

// ParallelRows calls fn over disjoint [y0, y1) row ranges covering [0, h),
// at most GOMAXPROCS at a time. fn must only write rows in its range; under
// that rule the result does not depend on scheduling.
func ParallelRows(ctx context.Context, h int, fn func(y0, y1 int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y0 := 0; y0 < h; y0 += rowsPerTask {
		y1 := min(y0+rowsPerTask, h)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(y0, y1)
		})
	}
	return g.Wait()
}
