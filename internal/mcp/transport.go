package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/api/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// TransportType represents the available MCP transport protocols.
type TransportType string

const (
	// TransportStdio suits desktop clients and local development.
	TransportStdio TransportType = "stdio"
	TransportSSE   TransportType = "sse"
	// TransportHTTP is the Streamable HTTP transport.
	TransportHTTP TransportType = "http"
)

const (
	DefaultTransport = TransportStdio
	DefaultPort      = 8081

	GracefulShutdownTimeout = 30 * time.Second
)

// TransportConfig holds configuration for MCP transport selection.
type TransportConfig struct {
	Type TransportType
	// Host and Port are ignored for stdio.
	Host string
	Port int
}

// LoadTransportConfig reads MCP_TRANSPORT, MCP_HOST and MCP_PORT.
func LoadTransportConfig() (*TransportConfig, error) {
	cfg := &TransportConfig{
		Type: DefaultTransport,
		Port: DefaultPort,
		Host: "0.0.0.0",
	}

	if transportEnv := os.Getenv("MCP_TRANSPORT"); transportEnv != "" {
		transport := TransportType(transportEnv)
		switch transport {
		case TransportStdio, TransportSSE, TransportHTTP:
			cfg.Type = transport
		default:
			return nil, fmt.Errorf("invalid MCP_TRANSPORT value: %s (must be stdio, sse, or http)", transportEnv)
		}
	}

	if portEnv := os.Getenv("MCP_PORT"); portEnv != "" {
		port, err := strconv.Atoi(portEnv)
		if err != nil {
			return nil, fmt.Errorf("invalid MCP_PORT value: %s (must be a number)", portEnv)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid MCP_PORT value: %d (must be between 1 and 65535)", port)
		}
		cfg.Port = port
	}

	if hostEnv := os.Getenv("MCP_HOST"); hostEnv != "" {
		cfg.Host = hostEnv
	}

	return cfg, nil
}

// Serve runs mcpServer on the configured transport until ctx is done.
// Network transports pass through the correlation, logging and rate limit
// middleware used by the REST API.
func Serve(ctx context.Context, mcpServer *server.MCPServer, cfg *TransportConfig, limiter *middleware.RateLimiter, logger zerolog.Logger) error {
	switch cfg.Type {
	case TransportStdio:
		return serveStdio(ctx, mcpServer, logger)
	case TransportSSE:
		return serveHTTP(ctx, server.NewSSEServer(mcpServer), cfg, limiter, logger)
	case TransportHTTP:
		return serveHTTP(ctx, server.NewStreamableHTTPServer(mcpServer), cfg, limiter, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}

func serveStdio(ctx context.Context, mcpServer *server.MCPServer, logger zerolog.Logger) error {
	logger.Info().Str("transport", string(TransportStdio)).Msg("mcp server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ServeStdio(mcpServer); err != nil {
			errCh <- fmt.Errorf("stdio server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("mcp stdio server stopping")
		return nil
	case err := <-errCh:
		return err
	}
}

func serveHTTP(ctx context.Context, handler http.Handler, cfg *TransportConfig, limiter *middleware.RateLimiter, logger zerolog.Logger) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           WrapHandler(handler, limiter, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("transport", string(cfg.Type)).Str("addr", addr).Msg("mcp server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server error: %w", cfg.Type, err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("mcp server shutdown error")
			return fmt.Errorf("%s server shutdown: %w", cfg.Type, err)
		}
		logger.Info().Msg("mcp server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// WrapHandler applies the shared HTTP middleware to an MCP transport handler.
func WrapHandler(handler http.Handler, limiter *middleware.RateLimiter, logger zerolog.Logger) http.Handler {
	wrapped := handler
	if limiter != nil {
		wrapped = limiter.Middleware(wrapped)
	}
	wrapped = middleware.RequestLogging(logger)(wrapped)
	return middleware.CorrelationID(logger)(wrapped)
}
