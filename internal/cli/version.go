package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/roach88/routebook/internal/export"
	"github.com/roach88/routebook/internal/schema"
)

// Version is the build version, overridden at link time with
// -ldflags "-X github.com/roach88/routebook/internal/cli.Version=...".
var Version = "0.1.0-dev"

// VersionInfo describes the binary and the formats it reads and writes.
type VersionInfo struct {
	Version       string `json:"version"`
	SchemaVersion int    `json:"schema_version"`
	ExportFormat  int    `json:"export_format_version"`
	GoVersion     string `json:"go_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{
				Version:       Version,
				SchemaVersion: schema.LatestVersion,
				ExportFormat:  export.FormatVersion,
				GoVersion:     runtime.Version(),
			}
			out := rootOpts.formatter(cmd)
			if out.JSON() {
				return out.Success(info)
			}
			out.Printf("routebook %s (schema v%d, export v%d, %s)\n",
				info.Version, info.SchemaVersion, info.ExportFormat, info.GoVersion)
			return nil
		},
	}
}
