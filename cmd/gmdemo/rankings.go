package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Engineer-Box/gmdemo/internal/app"
)

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Maintain the leaderboards",
}

var rankingsRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild every leaderboard from settled matches",
	Long: `Clear the leaderboards and project every settled match again from its
stored outcome. With --export the settlement receipts are also written to the
archive as one JSONL object.`,
	RunE: runRankingsRebuild,
}

var exportReceipts bool

func init() {
	rankingsRebuildCmd.Flags().BoolVar(&exportReceipts, "export", false, "also export all settlement receipts to the archive")
	rankingsCmd.AddCommand(rankingsRebuildCmd)
	rootCmd.AddCommand(rankingsCmd)
}

func runRankingsRebuild(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		st, err := a.RebuildRankings(ctx, exportReceipts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "projected matches: %d\n", st.Projected)
		if st.ExportPath != "" {
			fmt.Fprintf(out, "exported %d receipts to %s\n", st.Exported, st.ExportPath)
		}
		return nil
	})
}
