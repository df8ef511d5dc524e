package stubcat

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jward/stubcat/internal/store"
)

// workItem holds everything an extraction worker needs.
type workItem struct {
	path string
	src  []byte
	hash string
	core bool
}

// extracted is one worker's output. Batches are not yet committed.
type extracted struct {
	item       workItem
	batch      *store.Batch
	structural []error
	malformed  []error
	err        error
}

// extractParallel parses items on a bounded worker pool. Results keep the
// input order so the single writer commits deterministically. Per-file
// failures are returned in the results; only cancellation aborts the pool.
func (e *Engine) extractParallel(ctx context.Context, items []workItem) ([]extracted, error) {
	if len(items) == 0 {
		return nil, nil
	}
	// Indexes are unique per goroutine; no mutex needed.
	results := make([]extracted, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.numWorkers(len(items)))
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.extractFile(gctx, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// extractSerial is extractParallel on the calling goroutine.
func (e *Engine) extractSerial(ctx context.Context, items []workItem) ([]extracted, error) {
	results := make([]extracted, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, e.extractFile(ctx, item))
	}
	return results, nil
}
