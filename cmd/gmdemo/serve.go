package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Engineer-Box/gmdemo/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and sweeps",
	Long: `Run the service in the configured mode: "server" serves the HTTP API and
websocket hub, "sweep" runs only the scheduled sweeps, "full" does both.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("mode", "", "override the configured mode (server, sweep, full)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		return ignoreCanceled(a.Run(ctx))
	})
}
