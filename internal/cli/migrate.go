package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/routebook/internal/metrics"
	"github.com/roach88/routebook/internal/schema"
	"github.com/roach88/routebook/internal/store"
)

// MigrateResult reports the schema versions before and after a migration.
type MigrateResult struct {
	Path string `json:"path"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Long: `Create a new database or upgrade an existing one to the latest schema.

Each pending step runs in its own transaction; a failed step leaves the
database at the last fully applied version. Running migrate twice is safe.

Examples:
  routebook migrate --db ./data/routebook.db
  routebook migrate --config ./routebook.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd)
		},
	}
}

func runMigrate(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cmd, cfg)
	m := metrics.New(nil)

	st, err := store.Open(ctx, cfg.Database, store.WithLogger(logger), store.WithMetrics(m))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	mgr := schema.New(st,
		schema.WithTimeout(cfg.Database.MigrationTimeout),
		schema.WithLogger(logger),
		schema.WithMetrics(m),
	)
	from, err := mgr.CurrentVersion(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read schema version", err)
	}
	if err := mgr.Migrate(ctx); err != nil {
		return WrapExitError(ExitFailure, "migration failed", err)
	}
	if err := mgr.EnsureIndexes(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to create indexes", err)
	}
	to, err := mgr.CurrentVersion(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read schema version", err)
	}

	out := opts.formatter(cmd)
	result := MigrateResult{Path: cfg.Database.Path, From: from, To: to}
	if out.JSON() {
		return out.Success(result)
	}
	if from == to {
		out.Printf("Schema already at version %d (%s)\n", to, result.Path)
		return nil
	}
	out.Printf("Migrated %s from version %d to %d\n", result.Path, from, to)
	return nil
}
