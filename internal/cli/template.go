package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assetinventory/internal/importer"
)

// NewTemplateCommand creates the template command.
func NewTemplateCommand(_ *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the import CSV template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), importer.Template())
				return err
			}
			if err := os.WriteFile(output, []byte(importer.Template()), 0o644); err != nil {
				return &ExitError{Code: ExitCommandError, Message: "write template", Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
