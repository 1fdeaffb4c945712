package main

import (
	"github.com/spf13/cobra"

	"replaywatch/internal/api"
)

var serveFlags struct {
	port string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored runs and reports over HTTP",
	Long: `Starts the report API on the configured port:

  GET /v1/runs                      runs, paged with limit and page_token
  GET /v1/runs/{run_id}             one run
  GET /v1/runs/{run_id}/reports     per-entry outcomes, paged; failed=true filters
  GET /healthz`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.port, "port", "", "HTTP port (default $HTTP_PORT or 8080)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := *appConfig
	if serveFlags.port != "" {
		cfg.HTTPPort = serveFlags.port
	}
	ctx := cmd.Context()

	store, err := openStore(ctx, &cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return api.NewServer(cfg.HTTPPort, store).Serve(ctx, cfg.ShutdownGrace)
}
