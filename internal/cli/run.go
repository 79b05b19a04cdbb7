package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assetinventory/internal/config"
	"github.com/JonMunkholm/assetinventory/internal/importer"
	"github.com/JonMunkholm/assetinventory/internal/inventory"
	"github.com/JonMunkholm/assetinventory/internal/store/postgres"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	BatchSize  int
	BatchDelay time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Import a CSV file into the asset store",
		Long: `Validate a CSV file and commit the valid rows in paced batches.

Rejected rows are reported and skipped. A failed batch does not stop later
batches. Interrupting the command stops before the next batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runImport(ctx, rootOpts, opts, cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 5, "records per bulk create call")
	cmd.Flags().DurationVar(&opts.BatchDelay, "batch-delay", 2*time.Second, "pause between batches")
	return cmd
}

// RunSummary is the json output of run.
type RunSummary struct {
	File     string                 `json:"file"`
	Report   ValidationReport       `json:"validation"`
	Commit   *importer.CommitResult `json:"commit"`
	State    importer.State         `json:"state"`
	Canceled bool                   `json:"canceled,omitempty"`
}

func runImport(ctx context.Context, rootOpts *RootOptions, opts *RunOptions, w io.Writer, path string) error {
	run, err := loadFile(path)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "read " + path, Err: err}
	}
	report := buildReport(path, run.Parsed(), run.Outcome())
	text := rootOpts.Format != "json"
	if text {
		printReport(w, report)
	}

	store, release, err := rootOpts.OpenStore(ctx)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "open store", Err: err}
	}
	defer release()

	committer, err := importer.NewCommitter(store, importer.CommitOptions{
		BatchSize:  opts.BatchSize,
		BatchDelay: opts.BatchDelay,
		Logger:     slog.Default().With("file", path),
	})
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "invalid batch options", Err: err}
	}

	res, err := run.Commit(ctx, committer, func(p importer.BatchProgress) {
		if text {
			fmt.Fprintf(w, "batch %d/%d  %5.1f%%  succeeded=%d failed=%d\n",
				p.Batch, p.TotalBatches, p.Percent, p.Succeeded, p.Failed)
		}
	})
	canceled := run.State() == importer.StateCancelled

	if text {
		if canceled {
			fmt.Fprintf(w, "import cancelled: %d committed, %d not attempted\n", res.Succeeded, res.NotAttempted)
		} else {
			fmt.Fprintf(w, "import complete: %d committed, %d failed\n", res.Succeeded, res.Failed)
		}
		for _, be := range res.Errors {
			fmt.Fprintf(w, "  %v\n", be)
		}
	} else if werr := writeJSON(w, RunSummary{
		File:     path,
		Report:   report,
		Commit:   res,
		State:    run.State(),
		Canceled: canceled,
	}); werr != nil {
		return werr
	}

	switch {
	case canceled:
		return &ExitError{Code: ExitFailure, Message: "import cancelled", Err: err}
	case err != nil:
		return &ExitError{Code: ExitFailure, Message: "import failed", Err: err}
	case res.Failed > 0:
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d record(s) failed", res.Failed)}
	}
	return nil
}

// openPostgres commits to the asset repository of the configured
// Postgres store.
func openPostgres(ctx context.Context) (importer.BulkCreator, func(), error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Backend != config.BackendPostgres {
		return nil, nil, fmt.Errorf("STORE_BACKEND %q cannot be used from the command line", cfg.Database.Backend)
	}

	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	backend := postgres.New(pool)
	if err := backend.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return inventory.New(backend).Assets, pool.Close, nil
}
