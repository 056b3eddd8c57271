package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/activitydb/internal/regen"
)

// RegenerateOptions holds flags for the regenerate command.
type RegenerateOptions struct {
	*RootOptions
	DBPath      string
	Tables      []string
	ActivityIDs []int64
	DryRun      bool

	// Inserter repopulates emptied tables. Nil leaves them empty for the
	// ingest pipeline to refill.
	Inserter regen.Inserter
}

// NewRegenerateCommand creates the regenerate command.
func NewRegenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Delete derived rows so they can be regenerated",
		Long: `Delete rows from derived tables ahead of regeneration.

Without --activity-ids every row of each table is deleted. With it, only
rows of those activities are. Child tables can only be regenerated for
activities that exist in the activities table unless activities is
regenerated in the same run. All deletions happen in one transaction.
body_composition is never deleted.

Example:
  activitydb regenerate --tables splits,heart_rate_zones --activity-ids 1001,1002
  activitydb regenerate --tables all --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegenerate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db-path", "", "path to SQLite database (default from config)")
	cmd.Flags().StringSliceVar(&opts.Tables, "tables", nil, "tables to regenerate (default all): "+strings.Join(availableTableList(), ","))
	cmd.Flags().Int64SliceVar(&opts.ActivityIDs, "activity-ids", nil, "only regenerate these activities")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate and show what would be deleted")

	return cmd
}

func availableTableList() []string {
	tables, _ := regen.FilterTables(nil)
	return tables
}

func runRegenerate(opts *RegenerateOptions, cmd *cobra.Command) error {
	if err := opts.prepare(cmd); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)
	path := opts.databasePath(opts.DBPath)

	ropts := []regen.RegeneratorOption{regen.WithLogger(opts.logger)}
	if opts.Inserter != nil {
		ropts = append(ropts, regen.WithInserter(opts.Inserter))
	}
	r := regen.NewRegenerator(opts.gateway(), ropts...)

	result, err := r.Run(cmd.Context(), path, regen.Request{
		Tables:      opts.Tables,
		ActivityIDs: opts.ActivityIDs,
		DryRun:      opts.DryRun,
	})
	if err != nil {
		return report(formatter, "", err)
	}

	formatter.VerboseLog("run %s", result.RunID)
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	printRegenerate(formatter, path, result)
	return nil
}

func printRegenerate(f *OutputFormatter, path string, res regen.Result) {
	w := f.Writer

	scope := "all activities"
	if len(res.ActivityIDs) > 0 {
		scope = fmt.Sprintf("%d activity(ies)", len(res.ActivityIDs))
	}
	verb := "Regenerating"
	if res.DryRun {
		verb = "Dry run:"
	}
	fmt.Fprintf(w, "%s %d table(s) for %s in %s\n", verb, len(res.Tables), scope, path)

	touched := make(map[string]bool, len(res.Deleted))
	var total int64
	for _, tr := range res.Deleted {
		touched[tr.Table] = true
		switch {
		case tr.Skipped:
			fmt.Fprintf(w, "  %s: skipped, table does not exist\n", tr.Table)
		case res.DryRun:
			fmt.Fprintf(w, "  %s: would delete\n", tr.Table)
		default:
			fmt.Fprintf(w, "  %s: deleted %d row(s)\n", tr.Table, tr.Rows)
			total += tr.Rows
		}
	}
	for _, t := range res.Tables {
		if !touched[t] {
			fmt.Fprintf(w, "  %s: kept, not keyed by activity\n", t)
		}
	}

	if res.DryRun {
		fmt.Fprintln(w, "Nothing deleted.")
		return
	}
	fmt.Fprintf(w, "Deleted %d row(s).\n", total)
	for _, t := range res.Reinserted {
		fmt.Fprintf(w, "  %s: reinserted\n", t)
	}
}
