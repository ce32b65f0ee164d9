package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/historian-labs/historian/internal/logging"
	"github.com/historian-labs/historian/internal/mcpapi"
	"github.com/historian-labs/historian/internal/metrics"
	"github.com/historian-labs/historian/pkg/historian"
	"github.com/historian-labs/historian/pkg/version"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `serve starts historian as an MCP server, speaking JSON-RPC over stdio.
It registers search, index, delete, clear, and stats tools for an MCP
client (an assistant, an editor, another agent) to call directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// MCP stdio requires stdout reserved for protocol frames; route
			// all logging to the debug log file instead, never to stdout.
			cleanup, err := logging.SetupMCPMode()
			if err != nil {
				return fmt.Errorf("set up logging: %w", err)
			}
			defer cleanup()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			h, err := historian.Open(cfg)
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer h.Close()

			if metricsAddr != "" {
				stopMetrics := serveMetrics(cmd.Context(), metricsAddr, h)
				defer stopMetrics()
			}

			srv, err := mcpapi.NewServer(h.Service(), version.Version)
			if err != nil {
				return fmt.Errorf("build mcp server: %w", err)
			}

			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics at this address (e.g. :9090); disabled by default")
	return cmd
}

// serveMetrics starts a background HTTP server exposing h's query telemetry
// at /metrics, and returns a function that shuts it down.
func serveMetrics(ctx context.Context, addr string, h *historian.Historian) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(h.Metrics()))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped with error", slog.Any("error", err))
		}
	}()

	return func() {
		_ = srv.Close()
	}
}
