package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Engineer-Box/gmdemo/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	})
}
