package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/assetinventory/internal/batch"
)

// MassDeleteOptions paces MassDeleteAssets.
type MassDeleteOptions struct {
	BatchSize  int
	BatchDelay time.Duration
	OnProgress func(percent float64)
}

// MassDeleteResult summarizes a mass delete.
type MassDeleteResult struct {
	Total   int      `json:"total"`
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// MassDeleteAssets deletes every asset in paced batches. confirm must equal
// MassDeleteConfirmation. Deletes inside a batch run one after another; a
// failed delete is counted and the run continues.
func (s *Service) MassDeleteAssets(ctx context.Context, confirm string, opts MassDeleteOptions) (MassDeleteResult, error) {
	if confirm != MassDeleteConfirmation {
		return MassDeleteResult{}, ErrConfirmation
	}

	assets, err := s.inv.Assets.List(ctx, "", 0)
	if err != nil {
		return MassDeleteResult{}, err
	}

	res := MassDeleteResult{Total: len(assets)}
	_, err = batch.Run(ctx, assets, batch.Options{
		Size:  opts.BatchSize,
		Delay: opts.BatchDelay,
		OnBatch: func(_ batch.Result, completed, total int) {
			if opts.OnProgress != nil {
				opts.OnProgress(float64(completed) / float64(total) * 100)
			}
		},
	}, func(ctx context.Context, group []Asset) error {
		for _, a := range group {
			if err := s.inv.Assets.Delete(ctx, a.ID); err != nil {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", a.AssetID, err))
				slog.Warn("mass delete: asset not deleted", "asset_id", a.AssetID, "error", err)
				continue
			}
			res.Deleted++
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("mass delete: %w", err)
	}

	slog.Info("mass delete complete", "total", res.Total, "deleted", res.Deleted, "failed", res.Failed)
	return res, nil
}
