package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/api"
	"github.com/Togather-Foundation/gatherings/internal/audit"
	"github.com/Togather-Foundation/gatherings/internal/config"
	"github.com/Togather-Foundation/gatherings/internal/domain/users"
	"github.com/Togather-Foundation/gatherings/internal/metrics"
	"github.com/Togather-Foundation/gatherings/internal/storage/postgres"
	"github.com/Togather-Foundation/gatherings/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 10 * time.Second
	startupDBTimeout   = 10 * time.Second
	bootstrapUserLimit = 10 * time.Second
)

type serveOptions struct {
	host string
	port int
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Gatherings HTTP server",
		Long: `Start the Gatherings HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Apply pending migrations when MIGRATIONS_AUTO is set
- Create the bootstrap account if BOOTSTRAP_* env vars are set
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  gatherings serve

  # Start on a specific host and port
  gatherings serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  gatherings serve --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 8080)")
	return cmd
}

func runServer(ctx context.Context, global *globalOptions, opts *serveOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	applyServeFlags(&cfg, opts)

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("environment", cfg.Environment).Msg("starting gatherings server")

	metrics.Init(Version, GitCommit, BuildDate)
	logger.Info().Str("version", Version).Msg("metrics initialized")

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing setup failed: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	}

	openCtx, openCancel := context.WithTimeout(ctx, startupDBTimeout)
	pool, err := postgres.Open(openCtx, cfg.Database.URL, cfg.Database.MaxConnections)
	openCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}
	if err := metrics.RegisterPool(repo); err != nil {
		logger.Warn().Err(err).Msg("pool metrics not registered")
	}

	bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, bootstrapUserLimit)
	if err := bootstrapUser(bootstrapCtx, cfg, users.NewService(repo.Users(), audit.NewLoggerWithZerolog(logger), logger), logger); err != nil {
		logger.Error().Err(err).Msg("bootstrap user failed")
	}
	bootstrapCancel()

	router := api.NewRouter(cfg, logger, repo, buildInfo())
	defer router.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler,
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return gracefulShutdown(server, logger)
	})

	return group.Wait()
}

func applyServeFlags(cfg *config.Config, opts *serveOptions) {
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
}

// bootstrapUser creates the configured account unless it already exists.
func bootstrapUser(ctx context.Context, cfg config.Config, service *users.Service, logger zerolog.Logger) error {
	bootstrap := cfg.Bootstrap
	if bootstrap.Username == "" || bootstrap.Password == "" {
		logger.Debug().Msg("bootstrap user not configured; skipping")
		return nil
	}

	_, err := service.Register(ctx, users.RegisterInput{
		Username: bootstrap.Username,
		Email:    bootstrap.Email,
		Password: bootstrap.Password,
	})
	if errors.Is(err, users.ErrUsernameTaken) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create bootstrap user: %w", err)
	}

	// Email is PII; keep it out of production logs.
	event := logger.Info().Str("username", bootstrap.Username)
	if cfg.Environment != "production" {
		event = event.Str("email", bootstrap.Email)
	}
	event.Msg("bootstrapped user")
	return nil
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
