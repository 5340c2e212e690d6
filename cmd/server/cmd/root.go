package cmd

import (
	"fmt"
	"os"

	"github.com/Togather-Foundation/gatherings/internal/config"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	serveCmd := newServeCommand(opts)
	rootCmd := &cobra.Command{
		Use:   "gatherings",
		Short: "Gatherings server - community events, RSVPs and reviews",
		Long: `Gatherings server runs the REST API for community events.

The server supports:
- Publishing public and private events
- RSVPs with one answer per member and event
- Reviews with per-event rating aggregates
- Member profiles and JWT authentication
- A read-only MCP endpoint for agents`,
		SilenceUsage: true,
		// Run the serve command by default if no subcommand is specified
		RunE: serveCmd.RunE,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (optional, uses env vars by default)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console) (default: json)")

	rootCmd.AddCommand(
		serveCmd,
		newVersionCommand(),
		newHealthcheckCommand(),
		newMigrateCommand(opts),
		newUsersCommand(opts),
		newMCPCommand(opts),
	)
	return rootCmd
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment, overlays --config when given, then
// applies the logging flags.
func loadConfig(opts *globalOptions) (config.Config, error) {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	return cfg, nil
}
