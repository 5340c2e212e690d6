package cmd

import (
	"fmt"

	"github.com/Togather-Foundation/gatherings/internal/storage/postgres"
	"github.com/spf13/cobra"
)

type migrateOptions struct {
	databaseURL string
	path        string
	steps       int
}

func newMigrateCommand(global *globalOptions) *cobra.Command {
	opts := &migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: `Apply or roll back database schema migrations.

Migrations compiled into the binary are used unless --path points at a
directory of migration files.

Examples:
  # Apply all pending migrations
  gatherings migrate up

  # Roll back the last migration
  gatherings migrate down --steps 1

  # Show the current schema version
  gatherings migrate version`,
	}
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "database URL (default: DATABASE_URL from config)")
	cmd.PersistentFlags().StringVar(&opts.path, "path", "", "migrations directory (default: embedded migrations)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := migrationDatabaseURL(global, opts)
			if err != nil {
				return err
			}
			if err := postgres.MigrateUp(url, opts.path); err != nil {
				return err
			}
			return printMigrationVersion(cmd, url, opts.path)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := migrationDatabaseURL(global, opts)
			if err != nil {
				return err
			}
			if err := postgres.MigrateDown(url, opts.path, opts.steps); err != nil {
				return err
			}
			return printMigrationVersion(cmd, url, opts.path)
		},
	}
	down.Flags().IntVar(&opts.steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := migrationDatabaseURL(global, opts)
			if err != nil {
				return err
			}
			return printMigrationVersion(cmd, url, opts.path)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func migrationDatabaseURL(global *globalOptions, opts *migrateOptions) (string, error) {
	if opts.databaseURL != "" {
		return opts.databaseURL, nil
	}
	cfg, err := loadConfig(global)
	if err != nil {
		return "", fmt.Errorf("config error: %w", err)
	}
	return cfg.Database.URL, nil
}

func printMigrationVersion(cmd *cobra.Command, databaseURL, path string) error {
	version, dirty, err := postgres.MigrationVersion(databaseURL, path)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, state)
	return nil
}
