package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rahulv/skilltrack/internal/store"
)

// resetCmd clears the pull checkpoint so the next sync does a full initial
// pull. This is the logout/re-install escape hatch; interactions are kept.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the sync checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return fmt.Errorf("resolve DB path: %w", err)
		}
		st, err := store.Open(dbPath, cfg.Sync.SchemaVersion)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		if err := st.ResetCheckpoint(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Checkpoint reset. Next sync will pull everything.")
		return nil
	},
}
