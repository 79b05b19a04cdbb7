// Package batch runs work over a slice in fixed-size, strictly sequential,
// paced batches.
//
// Each batch's call completes before the next starts, and a fixed delay is
// inserted between batches. A failing batch is recorded and the run moves
// on; nothing is retried. Cancellation is honored before every batch and
// during the delay.
package batch

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidSize is returned when the batch size is not positive.
var ErrInvalidSize = errors.New("batch size must be positive")

// Result is the outcome of one batch.
type Result struct {
	Index  int   // 0-based batch number
	Offset int   // index of the batch's first item in the input
	Size   int   // items in the batch
	Err    error // non-nil if the whole batch failed
}

// Options controls partitioning and pacing.
type Options struct {
	Size  int
	Delay time.Duration

	// OnBatch is called after every batch, before the pacing delay.
	OnBatch func(r Result, completed, total int)
}

// Count returns how many batches n items split into.
func Count(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Partition splits items into consecutive slices of at most size items.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		return nil
	}
	out := make([][]T, 0, Count(len(items), size))
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// Run calls fn once per batch, in order. It returns the per-batch results
// for every batch that was attempted. If ctx is cancelled the remaining
// batches are not attempted and ctx.Err() is returned with the partial
// results.
func Run[T any](ctx context.Context, items []T, opts Options, fn func(ctx context.Context, batch []T) error) ([]Result, error) {
	if opts.Size <= 0 {
		return nil, ErrInvalidSize
	}

	batches := Partition(items, opts.Size)
	results := make([]Result, 0, len(batches))

	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		r := Result{Index: i, Offset: i * opts.Size, Size: len(b)}
		r.Err = fn(ctx, b)
		results = append(results, r)

		if opts.OnBatch != nil {
			opts.OnBatch(r, i+1, len(batches))
		}

		if i < len(batches)-1 {
			if err := Sleep(ctx, opts.Delay); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
