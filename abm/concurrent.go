package abm

import (
	"context"
	"sync"
)

// forEachIndexConcurrent runs fn for 0..n-1 with at most concurrency in flight.
// The first error cancels the remaining calls and is returned. Calls skipped
// because the parent ctx ended are reported through its error, so a nil
// return means fn ran for every index.
func forEachIndexConcurrent(ctx context.Context, concurrency, n int, fn func(context.Context, int) error) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, concurrency)
	errCh := make(chan error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}

			if err := fn(ctx, i); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}

	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return err
	}
	return parent.Err()
}
