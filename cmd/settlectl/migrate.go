package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/digicheckout/server/internal/shared/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := database.Ping(cmd.Context(), e.db); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := database.Migrate(e.db); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(database.Models()))
	return nil
}
