package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/trackguard/internal/config"
	"github.com/oshokin/trackguard/internal/service/console"
	"github.com/oshokin/trackguard/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the operator API address.
	serverAddress string
	// limit caps the history listing.
	limit int
	// interval is the watch polling interval.
	interval time.Duration

	// rootCmd prints the current state when run without a subcommand.
	rootCmd = &cobra.Command{
		Use:   "trackguard-console",
		Short: "Operate the trackguard server from the command line.",
		Long: `Talks to the trackguard-server operator API.

Without a subcommand the current alert state and live position are printed.
The server address is loaded from the configuration file unless --server is given.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(console.ActionState, "")
		},
	}
)

// actionCommand creates a subcommand running a console action.
func actionCommand(use, short, action string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(_ *cobra.Command, positional []string) error {
			var entryID string
			if len(positional) > 0 {
				entryID = positional[0]
			}

			return run(action, entryID)
		},
	}
}

// run executes one action with a signal-aware context.
func run(action, entryID string) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return console.Run(ctx, &console.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
		Action:        action,
		EntryID:       entryID,
		Limit:         limit,
		PollInterval:  interval,
	})
}

// Execute runs the trackguard-console CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "operator API address, overrides listen_addr")

	historyCmd := actionCommand("history", "List received reports, most recent first.", console.ActionHistory, cobra.NoArgs)
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of reports to list")

	watchCmd := actionCommand("watch", "Print the state whenever the alert changes.", console.ActionWatch, cobra.NoArgs)
	watchCmd.Flags().DurationVarP(&interval, "interval", "i", console.DefaultPollInterval, "polling interval")

	rootCmd.AddCommand(
		actionCommand("state", "Print the alert state and live position.", console.ActionState, cobra.NoArgs),
		historyCmd,
		actionCommand("show", "Show the active alert and its route on the map.", console.ActionShow, cobra.NoArgs),
		actionCommand("select <id>", "Replay a history report on the map.", console.ActionSelect, cobra.ExactArgs(1)),
		actionCommand("clear", "Remove the replayed history report from the map.", console.ActionClear, cobra.NoArgs),
		actionCommand("dismiss", "Dismiss the active alert, when enabled.", console.ActionDismiss, cobra.NoArgs),
		actionCommand("overlays", "Print the drawn overlays as GeoJSON.", console.ActionOverlays, cobra.NoArgs),
		watchCmd,
	)
}
