package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/activitydb/internal/migrate"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	DBPath string
}

// StatusResult is the JSON payload of the status command.
type StatusResult struct {
	Database string             `json:"database"`
	Version  int                `json:"version"`
	Latest   int                `json:"latest"`
	Applied  []AppliedMigration `json:"applied"`
	Pending  []PendingMigration `json:"pending"`
}

// AppliedMigration is one recorded migration.
type AppliedMigration struct {
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

// PendingMigration is one migration not yet applied.
type PendingMigration struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Long: `Show the schema version of the database with its applied and
pending migrations. Opens the database read-only.

Example:
  activitydb status --db-path ./data/activity.db
  activitydb status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db-path", "", "path to SQLite database (default from config)")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	if err := opts.prepare(cmd); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)
	path := opts.databasePath(opts.DBPath)

	runner, err := migrate.NewRunner(opts.gateway(), path, migrate.WithLogger(opts.logger))
	if err != nil {
		return report(formatter, "", err)
	}
	st, err := runner.Status(cmd.Context())
	if err != nil {
		return report(formatter, "", err)
	}

	result := StatusResult{
		Database: path,
		Version:  st.Current,
		Latest:   st.Latest,
		Applied:  make([]AppliedMigration, 0, len(st.Applied)),
		Pending:  make([]PendingMigration, 0, len(st.Pending)),
	}
	for _, rec := range st.Applied {
		result.Applied = append(result.Applied, AppliedMigration{
			Version:   rec.Version,
			Name:      rec.Name,
			AppliedAt: rec.AppliedAt,
		})
	}
	for _, d := range st.Pending {
		result.Pending = append(result.Pending, PendingMigration{Version: d.Version, Name: d.Name})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	printStatus(formatter, result)
	return nil
}

func printStatus(f *OutputFormatter, s StatusResult) {
	w := f.Writer
	fmt.Fprintf(w, "Database: %s\n", s.Database)
	fmt.Fprintf(w, "Schema version: %d of %d\n", s.Version, s.Latest)

	if len(s.Applied) == 0 {
		fmt.Fprintln(w, "Applied: none")
	} else {
		fmt.Fprintln(w, "Applied:")
		for _, a := range s.Applied {
			fmt.Fprintf(w, "  %d %s (%s)\n", a.Version, a.Name, a.AppliedAt.UTC().Format(time.RFC3339))
		}
	}

	if len(s.Pending) == 0 {
		fmt.Fprintln(w, "Pending: none")
		return
	}
	fmt.Fprintln(w, "Pending:")
	for _, p := range s.Pending {
		fmt.Fprintf(w, "  %d %s\n", p.Version, p.Name)
	}
}
