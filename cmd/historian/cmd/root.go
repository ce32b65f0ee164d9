package cmd

import (
	"fmt"
	"log/slog"

	"github.com/historian-labs/historian/internal/config"
	"github.com/historian-labs/historian/internal/logging"
	"github.com/historian-labs/historian/pkg/version"
	"github.com/spf13/cobra"
)

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	debug   bool
	dataDir string
}

var flags globalFlags

// NewRootCmd builds the historian root command and registers every subcommand.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "historian",
		Short: "Semantic search over your own browsing history",
		Long: `historian indexes the pages you visit and lets you find them again by
meaning, not just matching words. It runs as a local MCP server for
assistants, or as a one-shot CLI for scripts and debugging.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cleanup := setupLogging()
			cmd.Root().PersistentPostRunE = func(*cobra.Command, []string) error {
				cleanup()
				return nil
			}
			return nil
		},
	}
	root.Version = version.Version
	root.SetVersionTemplate(version.Short() + "\n")

	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "write verbose logs to ~/.historian/logs")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "override the index directory (default ~/.historian)")

	root.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newEvalCmd(),
		newStatsCmd(),
		newClearCmd(),
		newVersionCmd(),
		newConfigCmd(),
	)

	return root
}

// loadConfig loads historian's layered configuration and applies --data-dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.dataDir != "" {
		cfg.Paths.IndexDir = flags.dataDir
	}
	return cfg, nil
}

// setupLogging wires ~/.historian/logs file logging when --debug is set,
// and returns a no-op cleanup otherwise.
func setupLogging() func() {
	if !flags.debug {
		return func() {}
	}
	cleanup, err := logging.SetupDefault()
	if err != nil {
		slog.Warn("failed to set up debug logging", slog.Any("error", err))
		return func() {}
	}
	return cleanup
}
