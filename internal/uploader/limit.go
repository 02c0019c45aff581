package uploader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/amillerrr/chunkflow/pkg/models"
)

// mapLimit runs fn over items with at most limit invocations in flight,
// returning results in input order. Whenever an in-flight task settles the
// next pending item is dispatched immediately; there is no batching.
//
// Failure policy: the first fn error settles the overall call with that
// error. Tasks already in flight are not cancelled; they run to completion
// and their results are discarded. Items not yet dispatched when the first
// error lands are skipped. Later errors are swallowed.
func mapLimit[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T, index int) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return []R{}, nil
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidConcurrency, limit)
	}

	results := make([]R, len(items))
	var firstErr atomic.Pointer[error]

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, item := range items {
		sem <- struct{}{}

		wg.Add(1)
		go func(item T, index int) {
			defer wg.Done()
			defer func() { <-sem }()

			if firstErr.Load() != nil {
				return
			}

			res, err := fn(ctx, item, index)
			if err != nil {
				firstErr.CompareAndSwap(nil, &err)
				return
			}
			results[index] = res
		}(item, i)
	}

	wg.Wait()

	if errPtr := firstErr.Load(); errPtr != nil {
		return nil, *errPtr
	}
	return results, nil
}
