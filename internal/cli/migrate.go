package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/activitydb/internal/migrate"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	DBPath string
	Step   string
}

// MigrateResult is the JSON payload of a successful migrate run.
type MigrateResult struct {
	Database string   `json:"database"`
	Applied  []string `json:"applied"`
	Version  int      `json:"version"`
	Latest   int      `json:"latest"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply pending schema migrations in order.

Each migration runs in its own transaction and is recorded in the
schema_version table. A database that is already up to date is not
written to.

Example:
  activitydb migrate --db-path ./data/activity.db
  activitydb migrate --step create_section_analyses`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db-path", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Step, "step", migrate.StepAll, `migration to apply, or "all"`)

	return cmd
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command) error {
	if err := opts.prepare(cmd); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)
	path := opts.databasePath(opts.DBPath)
	ctx := cmd.Context()

	runner, err := migrate.NewRunner(opts.gateway(), path, migrate.WithLogger(opts.logger))
	if err != nil {
		return report(formatter, ErrCodeMigrationFailed, err)
	}
	versions := make(map[string]int)
	for _, d := range runner.Definitions() {
		versions[d.Name] = d.Version
	}

	if formatter.Format != "json" {
		fmt.Fprintf(formatter.Writer, "Migrating %s\n", path)
	}

	applied, runErr := runner.RunStep(ctx, opts.Step)
	if formatter.Format != "json" {
		for _, name := range applied {
			fmt.Fprintf(formatter.Writer, "  applied %d %s\n", versions[name], name)
		}
	}
	if runErr != nil {
		return report(formatter, ErrCodeMigrationFailed, runErr)
	}

	version, err := runner.CurrentVersion(ctx)
	if err != nil {
		return report(formatter, "", err)
	}
	latest := len(runner.Definitions())

	if formatter.Format == "json" {
		return formatter.Success(MigrateResult{
			Database: path,
			Applied:  applied,
			Version:  version,
			Latest:   latest,
		})
	}

	if len(applied) == 0 {
		fmt.Fprintf(formatter.Writer, "Nothing to apply, schema at version %d of %d\n", version, latest)
		return nil
	}
	fmt.Fprintf(formatter.Writer, "Applied %d migration(s), schema at version %d of %d\n", len(applied), version, latest)
	return nil
}
