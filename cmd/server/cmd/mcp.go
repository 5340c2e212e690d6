package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Togather-Foundation/gatherings/internal/api"
	"github.com/Togather-Foundation/gatherings/internal/api/middleware"
	"github.com/Togather-Foundation/gatherings/internal/config"
	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/mcp"
	"github.com/Togather-Foundation/gatherings/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newMCPCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve public events over the Model Context Protocol",
		Long: `Serve read-only event tools and the API description to MCP clients.

The transport is chosen with MCP_TRANSPORT (stdio, sse or http). Network
transports listen on MCP_HOST:MCP_PORT (default 0.0.0.0:8081). Logs always go
to stderr so they never interleave with stdio protocol messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context(), global)
		},
	}
}

func runMCP(ctx context.Context, global *globalOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	transport, err := mcp.LoadTransportConfig()
	if err != nil {
		return err
	}

	logger := config.NewLoggerTo(cfg.Logging, os.Stderr)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	server := mcp.NewServer(mcp.Config{
		Name:    "gatherings",
		Version: Version,
		BaseURL: cfg.Server.BaseURL,
	}, events.NewService(repo.Events(), repo.RSVPs()), api.OpenAPIDocument)

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.Environment)
	defer limiter.Stop()

	logger.Info().Str("transport", string(transport.Type)).Msg("starting mcp server")
	return mcp.Serve(ctx, server.MCPServer(), transport, limiter, logger)
}
