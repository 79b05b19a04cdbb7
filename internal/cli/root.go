// Package cli implements the assetimport command line tool.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assetinventory/internal/importer"
	"github.com/JonMunkholm/assetinventory/internal/logging"
)

// StoreOpener returns the store run commits to and a func releasing it.
type StoreOpener func(ctx context.Context) (importer.BulkCreator, func(), error)

// RootOptions holds global flags and dependencies for all commands.
type RootOptions struct {
	LogLevel string
	Format   string // "text" | "json"

	// OpenStore defaults to the Postgres store named by DATABASE_URL.
	OpenStore StoreOpener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the assetimport root command.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}
	if opts.OpenStore == nil {
		opts.OpenStore = openPostgres
	}

	cmd := &cobra.Command{
		Use:   "assetimport",
		Short: "Validate and import asset inventory CSV files",
		Long: `assetimport checks asset inventory CSV files and commits them in
paced batches. Rows missing a name or asset ID are rejected; invalid prices,
dates and statuses are corrected with a warning.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.LogLevel, "text"))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewTemplateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
