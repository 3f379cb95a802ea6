package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Engineer-Box/gmdemo/internal/app"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one sweep pass and exit",
	Long:  `Expire unjoined battles, settle stale votes, retry ruled disputes and prune old notifications once.`,
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		st, err := a.SweepOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "expired: %d\nstale settled: %d\nresolved settled: %d\ninbox pruned: %d\nfailed: %d\n",
			st.Expired, st.StaleSettled, st.ResolvedSettled, st.InboxPruned, st.Failed)
		return nil
	})
}
