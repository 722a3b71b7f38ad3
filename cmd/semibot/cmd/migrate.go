package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoatGit/semibot/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "show migration status without applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	statusOnly, _ := cmd.Flags().GetBool("status")
	if !statusOnly {
		if err := st.MigrateUp(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	statuses, err := st.MigrateStatus()
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", s.ID, state)
	}
	return nil
}
