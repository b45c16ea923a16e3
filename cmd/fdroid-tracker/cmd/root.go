package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/config"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/service/tracker"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/version"
)

var (
	// configPath to the settings YAML file.
	configPath string

	// rootCmd represents the base command for running the tracker service.
	rootCmd = &cobra.Command{
		Use:   "fdroid-tracker",
		Short: "Keep an F-Droid repository synchronized with GitHub releases.",
		Long: `Runs the repository tracker service.

On a fixed schedule the tracker downloads new release artifacts from the
configured GitHub sources, harvests fastlane metadata from their source
branches, and drives the two-pass fdroid build that produces the signed,
publishable index. The poll interval comes from POLL_INTERVAL (seconds)
and signing credentials from the FDROID_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &tracker.Options{
				ConfigPath: configPath,
			}

			return tracker.Run(ctx, options)
		},
	}
)

// Execute runs the fdroid-tracker CLI and exits with non-zero status on error.
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
}
