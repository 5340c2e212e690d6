package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/api/handlers"
	"github.com/spf13/cobra"
)

type healthcheckOptions struct {
	timeout int
	url     string
}

// healthResult summarizes one probe of the /health endpoint.
type healthResult struct {
	URL        string
	StatusCode int
	Status     string
	IsHealthy  bool
	LatencyMs  int64
	Error      string
}

func newHealthcheckCommand() *cobra.Command {
	opts := &healthcheckOptions{}
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.
It exits with code 0 if the server is healthy, non-zero otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := opts.url
			if url == "" {
				url = defaultHealthURL()
			}
			result := performHealthCheck(url, time.Duration(opts.timeout)*time.Second)
			if result.Error != "" {
				return fmt.Errorf("health check failed: %s", result.Error)
			}
			if !result.IsHealthy {
				return fmt.Errorf("unhealthy: status=%s (HTTP %d)", result.Status, result.StatusCode)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s healthy (%dms)\n", result.URL, result.LatencyMs)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.timeout, "timeout", 5, "timeout in seconds")
	cmd.Flags().StringVar(&opts.url, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	return cmd
}

func defaultHealthURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

// performHealthCheck probes url once. Only "healthy" counts as healthy; a
// degraded server still answers 200 but fails the check.
func performHealthCheck(url string, timeout time.Duration) healthResult {
	result := healthResult{URL: url}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() { _ = resp.Body.Close() }()
	result.StatusCode = resp.StatusCode

	var body handlers.HealthCheck
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Error = fmt.Sprintf("invalid response: %v", err)
		return result
	}
	result.Status = body.Status
	result.IsHealthy = resp.StatusCode == http.StatusOK && body.Status == "healthy"
	return result
}
