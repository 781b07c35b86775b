package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/routebook/internal/store"
)

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database integrity and report table sizes",
		Long: `Run SQLite's integrity check and report the file size, per-table row
counts and engine version. Exits 1 when the integrity check fails.

Examples:
  routebook health --db ./data/routebook.db
  routebook health --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(rootOpts, cmd)
		},
	}
}

func runHealth(opts *RootOptions, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	h, err := a.Store.Health(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "health check failed", err)
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		if err := out.Success(h); err != nil {
			return err
		}
	} else {
		status := "ok"
		if !h.IntegrityOK {
			status = "FAILED: " + strings.Join(h.IntegrityDetail, "; ")
		}
		out.Printf("Integrity:      %s\n", status)
		out.Printf("Size:           %d bytes\n", h.SizeBytes)
		out.Printf("SQLite:         %s\n", h.EngineVersion)
		out.Printf("Schema version: %d\n", h.SchemaVersion)
		out.Printf("Rows:\n")
		for _, table := range store.Tables {
			if n, ok := h.RowCounts[table]; ok {
				out.Printf("  %-14s %d\n", table, n)
			}
		}
	}

	if !h.IntegrityOK {
		return NewExitError(ExitFailure, "integrity check failed")
	}
	return nil
}
