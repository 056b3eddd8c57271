package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/activitydb/internal/config"
	"github.com/roach88/activitydb/internal/logging"
	"github.com/roach88/activitydb/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file; empty looks in the data directory

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the activitydb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "activitydb",
		Short: "Maintain the activity database",
		Long: `Maintain the activity analytics database.

Applies schema migrations in order and regenerates derived tables,
either completely or for selected activities.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default $ACTIVITYDB_DATA_DIR/config.yaml)")

	// Add subcommands
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewRegenerateCommand(opts))

	return cmd
}

// prepare loads configuration and builds the logger once per process.
func (o *RootOptions) prepare(cmd *cobra.Command) error {
	if o.cfg != nil {
		return nil
	}

	cfg, err := config.Load(o.Config)
	if err != nil {
		f := o.formatter(cmd)
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		exitErr := WrapExitError(ExitCommandError, ErrCodeConfig, err)
		exitErr.Reported = true
		return exitErr
	}
	if o.Verbose {
		cfg.Logging.Level = "debug"
	}

	o.cfg = cfg
	o.logger = logging.New(cfg.Logging, cmd.OutOrStdout(), cmd.ErrOrStderr())
	return nil
}

// databasePath returns flag if set, otherwise the configured path.
func (o *RootOptions) databasePath(flag string) string {
	if flag != "" {
		return flag
	}
	return o.cfg.DatabasePath()
}

// gateway returns a connection gateway using the configured retry policy.
func (o *RootOptions) gateway() *store.Gateway {
	return store.NewGateway(o.cfg.GatewayConfig(), store.WithLogger(o.logger))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
