package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/assetinventory/internal/batch"
	"github.com/JonMunkholm/assetinventory/internal/inventory"
)

// Reference pacing: 5 records per call, 2 seconds between calls.
const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 2 * time.Second
)

// BulkCreator is the part of the entity store the committer needs. A call
// is accepted as one unit of work or fails as one.
type BulkCreator interface {
	BulkCreate(ctx context.Context, recs []inventory.Asset) ([]inventory.Asset, error)
}

// BatchResult is the outcome of one bulk create call.
type BatchResult struct {
	Batch     int    `json:"batch"` // 1-based
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// CommitResult summarizes a commit.
type CommitResult struct {
	Total        int           `json:"total"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	NotAttempted int           `json:"not_attempted"`
	Batches      []BatchResult `json:"batches"`

	// FailedRecords holds the original records of failed batches, in
	// order, for the caller to resubmit.
	FailedRecords []inventory.Asset `json:"failed_records"`

	// Created holds the records returned by the store.
	Created []inventory.Asset `json:"-"`

	Errors    []*BatchCommitError `json:"-"`
	Cancelled bool                `json:"cancelled,omitempty"`
}

// BatchProgress is reported after every batch.
type BatchProgress struct {
	Batch        int     `json:"batch"`
	TotalBatches int     `json:"total_batches"`
	Percent      float64 `json:"percent"`
	Succeeded    int     `json:"succeeded"`
	Failed       int     `json:"failed"`
}

// CommitOptions configures a Committer.
type CommitOptions struct {
	BatchSize  int
	BatchDelay time.Duration
	Logger     *slog.Logger
	Metrics    *Metrics
}

// Committer submits records in fixed-size, sequential, paced batches.
type Committer struct {
	store   BulkCreator
	size    int
	delay   time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// NewCommitter validates opts and returns a Committer.
func NewCommitter(store BulkCreator, opts CommitOptions) (*Committer, error) {
	if store == nil {
		return nil, errors.New("committer: nil store")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("committer: %w (got %d)", batch.ErrInvalidSize, opts.BatchSize)
	}
	if opts.BatchDelay < 0 {
		return nil, fmt.Errorf("committer: batch delay must be non-negative (got %s)", opts.BatchDelay)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{
		store:   store,
		size:    opts.BatchSize,
		delay:   opts.BatchDelay,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// BatchSize returns the configured batch size.
func (c *Committer) BatchSize() int { return c.size }

// Commit creates records batch by batch. A failed batch is recorded and
// does not stop later batches. onProgress, if set, is called after every
// batch. If ctx is cancelled between batches the result is marked
// Cancelled, the remaining records count as NotAttempted and ctx.Err() is
// returned alongside the partial result.
func (c *Committer) Commit(ctx context.Context, records []inventory.Asset, onProgress func(BatchProgress)) (*CommitResult, error) {
	res := &CommitResult{
		Total:         len(records),
		Batches:       []BatchResult{},
		FailedRecords: []inventory.Asset{},
	}

	attempted := 0
	_, err := batch.Run(ctx, records, batch.Options{
		Size:  c.size,
		Delay: c.delay,
		OnBatch: func(r batch.Result, completed, total int) {
			attempted += r.Size
			br := BatchResult{Batch: r.Index + 1, Attempted: r.Size}
			if r.Err != nil {
				bce := &BatchCommitError{Batch: r.Index + 1, Size: r.Size, Err: r.Err}
				br.Failed = r.Size
				br.Error = r.Err.Error()
				res.Failed += r.Size
				res.Errors = append(res.Errors, bce)
				res.FailedRecords = append(res.FailedRecords, records[r.Offset:r.Offset+r.Size]...)
				c.logger.Warn("batch commit failed",
					"batch", br.Batch,
					"of", total,
					"records", r.Size,
					"error", r.Err,
				)
				c.metrics.observeBatch(false)
			} else {
				br.Succeeded = r.Size
				res.Succeeded += r.Size
				c.logger.Debug("batch committed", "batch", br.Batch, "of", total, "records", r.Size)
				c.metrics.observeBatch(true)
			}
			res.Batches = append(res.Batches, br)

			if onProgress != nil {
				onProgress(BatchProgress{
					Batch:        completed,
					TotalBatches: total,
					Percent:      float64(completed) / float64(total) * 100,
					Succeeded:    res.Succeeded,
					Failed:       res.Failed,
				})
			}
		},
	}, func(ctx context.Context, group []inventory.Asset) error {
		created, err := c.store.BulkCreate(ctx, group)
		if err != nil {
			return err
		}
		res.Created = append(res.Created, created...)
		return nil
	})

	res.NotAttempted = res.Total - attempted
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Cancelled = true
			c.logger.Info("commit cancelled",
				"succeeded", res.Succeeded,
				"failed", res.Failed,
				"not_attempted", res.NotAttempted,
			)
		}
		return res, err
	}
	return res, nil
}
