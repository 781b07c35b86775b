package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// ExportSummary is printed when the document goes to a file.
type ExportSummary struct {
	Path          string `json:"path"`
	ExportID      string `json:"export_id"`
	SchemaVersion int    `json:"schema_version"`
	Clients       int    `json:"clients"`
	Payments      int    `json:"payments"`
	Logs          int    `json:"logs"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole database as one JSON document",
		Long: `Export every neighborhood, street, client, payment and log entry as a
single versioned JSON document, read from one consistent snapshot.

Without --output the document is written to stdout.

Examples:
  routebook export --db ./data/routebook.db > backup.json
  routebook export --output backup.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the document to this file")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.Output == "" {
		if _, err := a.Export.Export(cmd.Context(), cmd.OutOrStdout()); err != nil {
			return WrapExitError(ExitFailure, "export failed", err)
		}
		return nil
	}

	f, err := os.Create(opts.Output)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create output file", err)
	}
	doc, err := a.Export.Export(cmd.Context(), f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return WrapExitError(ExitFailure, "export failed", err)
	}

	summary := ExportSummary{
		Path:          opts.Output,
		ExportID:      doc.ExportID,
		SchemaVersion: doc.SchemaVersion,
		Clients:       len(doc.Clients),
		Payments:      len(doc.Payments),
		Logs:          len(doc.Logs),
	}
	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(summary)
	}
	out.Printf("Exported %d clients, %d payments, %d log entries to %s\n",
		summary.Clients, summary.Payments, summary.Logs, summary.Path)
	return nil
}
