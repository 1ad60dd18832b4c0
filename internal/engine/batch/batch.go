// Package batch runs a per-item operation over a collection under a
// concurrency cap. Items are split into fixed-size groups; a group runs
// concurrently, groups run sequentially, so in-flight work never exceeds
// the group size.
package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultSize bounds concurrency when the caller does not.
const DefaultSize = 10

// Options configures a batch run.
type Options[T any] struct {
	Size            int                           // concurrency bound, defaults to DefaultSize
	OnProgress      func(completed, total int)    // fires after every completed item
	OnError         func(err error, item T)       // fires per handled failure (ContinueOnError only)
	ContinueOnError bool                          // false aborts the run on first error
}

// Success pairs an item with its result.
type Success[T, R any] struct {
	Item   T
	Result R
}

// Failure pairs an item with its terminal error.
type Failure[T any] struct {
	Item T
	Err  error
}

// Results partitions every input item into exactly one of the two lists.
type Results[T, R any] struct {
	Successes []Success[T, R]
	Failures  []Failure[T]
}

// Func is the per-item operation. It must be idempotent and safe to retry.
type Func[T, R any] func(ctx context.Context, item T) (R, error)

type outcome[R any] struct {
	value R
	err   error
}

// Process runs fn over items with bounded concurrency and returns the
// successful results in input order. With ContinueOnError, failed items are
// dropped from the result and reported through OnError; otherwise the first
// error aborts the run and later items are never started.
func Process[T, R any](ctx context.Context, items []T, fn Func[T, R], opts Options[T]) ([]R, error) {
	outcomes, err := run(ctx, items, fn, opts)
	if err != nil {
		return nil, err
	}

	results := make([]R, 0, len(items))
	for _, o := range outcomes {
		if o.err == nil {
			results = append(results, o.value)
		}
	}
	return results, nil
}

// ProcessWithResults is Process with continue-on-error semantics forced on,
// returning failures alongside successes instead of discarding them. Both
// lists preserve input order.
func ProcessWithResults[T, R any](ctx context.Context, items []T, fn Func[T, R], opts Options[T]) (Results[T, R], error) {
	opts.ContinueOnError = true
	outcomes, err := run(ctx, items, fn, opts)
	if err != nil {
		return Results[T, R]{}, err
	}

	res := Results[T, R]{
		Successes: make([]Success[T, R], 0, len(items)),
		Failures:  make([]Failure[T], 0),
	}
	for i, o := range outcomes {
		if o.err == nil {
			res.Successes = append(res.Successes, Success[T, R]{Item: items[i], Result: o.value})
		} else {
			res.Failures = append(res.Failures, Failure[T]{Item: items[i], Err: o.err})
		}
	}
	return res, nil
}

// ProcessSequential runs items strictly one at a time: item i+1 starts only
// after item i fully completes. The first error aborts the run.
func ProcessSequential[T, R any](ctx context.Context, items []T, fn Func[T, R], opts Options[T]) ([]R, error) {
	results := make([]R, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		value, err := fn(ctx, item)
		if err != nil {
			return results, err
		}
		results = append(results, value)
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(items))
		}
	}
	return results, nil
}

func run[T, R any](ctx context.Context, items []T, fn Func[T, R], opts Options[T]) ([]outcome[R], error) {
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}

	outcomes := make([]outcome[R], len(items))

	var mu sync.Mutex
	completed := 0
	report := func(idx int, item T, value R, err error) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[idx] = outcome[R]{value: value, err: err}
		completed++
		if err != nil && opts.OnError != nil {
			opts.OnError(err, item)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(completed, len(items))
		}
	}

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))

		if opts.ContinueOnError {
			var wg sync.WaitGroup
			for i := start; i < end; i++ {
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()
					value, err := fn(ctx, items[idx])
					report(idx, items[idx], value, err)
				}(i)
			}
			wg.Wait()
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				value, err := fn(gctx, items[i])
				if err != nil {
					return err
				}
				report(i, items[i], value, nil)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return outcomes, nil
}
