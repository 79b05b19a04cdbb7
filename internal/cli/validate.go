package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assetinventory/internal/importer"
)

// ValidationReport is the json output of validate.
type ValidationReport struct {
	File     string                `json:"file"`
	Rows     int                   `json:"rows"`
	Clean    int                   `json:"clean"`
	Warned   int                   `json:"warned"`
	Rejected int                   `json:"rejected"`
	Unknown  []string              `json:"unknown_columns,omitempty"`
	Issues   []ValidationIssue     `json:"issues,omitempty"`
	Error    *importer.UserMessage `json:"error,omitempty"`
}

// ValidationIssue is one rejected or corrected field.
type ValidationIssue struct {
	Line     int    `json:"line"`
	Severity string `json:"severity"` // "error" | "warning"
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Parse and validate a CSV file without importing it",
		Long: `Parse and validate an asset CSV file and report what an import would do.

Nothing is written. With --strict the command fails when any row is rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd.OutOrStdout(), args[0], strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when any row is rejected")
	return cmd
}

func runValidate(opts *RootOptions, w io.Writer, path string, strict bool) error {
	run, err := loadFile(path)
	if err != nil {
		if opts.Format == "json" {
			msg := importer.MapError(err)
			_ = writeJSON(w, ValidationReport{File: path, Error: &msg})
		}
		return &ExitError{Code: ExitCommandError, Message: "validate " + path, Err: err}
	}

	report := buildReport(path, run.Parsed(), run.Outcome())
	if opts.Format == "json" {
		if err := writeJSON(w, report); err != nil {
			return err
		}
	} else {
		printReport(w, report)
	}

	if strict && report.Rejected > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d row(s) rejected", report.Rejected)}
	}
	return nil
}

// loadFile reads, parses and validates path. The returned run is in
// StateValidated.
func loadFile(path string) (*importer.Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	r, _ := importer.WrapForImport(f, size, 0)
	run := importer.NewRun()
	if _, err := run.Parse(r); err != nil {
		return nil, err
	}
	if _, err := run.Validate(); err != nil {
		return nil, err
	}
	return run, nil
}

func buildReport(path string, parsed *importer.Parsed, o *importer.Outcome) ValidationReport {
	rep := ValidationReport{
		File:     path,
		Rows:     o.Considered,
		Clean:    len(o.Clean),
		Warned:   len(o.Warned),
		Rejected: len(o.Rejected),
		Unknown:  parsed.Unknown,
	}
	for _, r := range o.Rejected {
		for _, e := range r.Errors {
			rep.Issues = append(rep.Issues, ValidationIssue{Line: r.Line, Severity: "error", Field: e.Field, Message: e.Message})
		}
	}
	for _, r := range o.Warned {
		for _, w := range r.Warnings {
			rep.Issues = append(rep.Issues, ValidationIssue{Line: r.Line, Severity: "warning", Field: w.Field, Message: w.Message})
		}
	}
	sort.SliceStable(rep.Issues, func(i, j int) bool { return rep.Issues[i].Line < rep.Issues[j].Line })
	return rep
}

func printReport(w io.Writer, rep ValidationReport) {
	fmt.Fprintf(w, "%s: %d row(s), %d clean, %d corrected, %d rejected\n",
		rep.File, rep.Rows, rep.Clean, rep.Warned, rep.Rejected)
	if len(rep.Unknown) > 0 {
		fmt.Fprintf(w, "ignored columns: %v\n", rep.Unknown)
	}
	for _, is := range rep.Issues {
		fmt.Fprintf(w, "  line %d %s %s: %s\n", is.Line, is.Severity, is.Field, is.Message)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
