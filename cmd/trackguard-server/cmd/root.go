package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/trackguard/internal/config"
	"github.com/oshokin/trackguard/internal/service/server"
	"github.com/oshokin/trackguard/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// httpAddress overrides the overlay HTTP address.
	httpAddress string

	// rootCmd represents the base command for running the tracking server.
	rootCmd = &cobra.Command{
		Use:   "trackguard-server [listen-address]",
		Short: "Track the live position and raise emergency alerts on the map.",
		Long: `Starts live position tracking from gpsd, listens to the emergency report feed
and drives the alert lifecycle on the map.

The operator gRPC API listens on the address from the configuration file unless
one is given as argument (e.g., :50061, 0.0.0.0:50061). When an HTTP address is
configured, the drawn overlays are published as GeoJSON on /api/overlays.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				HTTPAddress:   httpAddress,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the trackguard-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&httpAddress, "http", "", "address serving overlay GeoJSON, overrides http_addr")
}
