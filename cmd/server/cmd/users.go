package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/audit"
	"github.com/Togather-Foundation/gatherings/internal/config"
	"github.com/Togather-Foundation/gatherings/internal/domain/users"
	"github.com/Togather-Foundation/gatherings/internal/storage/postgres"
	"github.com/spf13/cobra"
)

type createUserOptions struct {
	username  string
	email     string
	password  string
	firstName string
	lastName  string
}

func newUsersCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage member accounts",
	}
	cmd.AddCommand(newCreateUserCommand(global))
	return cmd
}

func newCreateUserCommand(global *globalOptions) *cobra.Command {
	opts := &createUserOptions{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a member account with an empty profile",
		Long: `Create a member account and its profile.

The password is read from --password or, when the flag is omitted, from the
GATHERINGS_USER_PASSWORD environment variable.

Examples:
  GATHERINGS_USER_PASSWORD=s3cret-pass gatherings users create --username alice --email alice@example.org`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.password == "" {
				opts.password = os.Getenv("GATHERINGS_USER_PASSWORD")
			}
			if opts.username == "" || opts.password == "" {
				return fmt.Errorf("--username and a password are required")
			}

			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLoggerTo(cfg.Logging, cmd.ErrOrStderr())

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := postgres.Open(ctx, cfg.Database.URL, 2)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer pool.Close()

			repo, err := postgres.NewRepository(pool)
			if err != nil {
				return err
			}

			service := users.NewService(repo.Users(), audit.NewLoggerWithZerolog(logger), logger)
			user, err := service.Register(ctx, users.RegisterInput{
				Username:  opts.username,
				Email:     opts.email,
				Password:  opts.password,
				FirstName: opts.firstName,
				LastName:  opts.lastName,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "account username")
	cmd.Flags().StringVar(&opts.email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.password, "password", "", "account password (default: $GATHERINGS_USER_PASSWORD)")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&opts.lastName, "last-name", "", "last name")
	return cmd
}
