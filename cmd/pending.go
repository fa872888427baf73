package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rahulv/skilltrack/internal/store"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show interactions awaiting sync",
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

		ctx := cmd.Context()
		pending, err := st.ListPending(ctx)
		if err != nil {
			return err
		}
		_, synced, err := st.CountBySyncStatus(ctx)
		if err != nil {
			return err
		}
		cp, err := st.GetCheckpoint(ctx)
		if err != nil {
			return err
		}

		for _, in := range pending {
			mark := "✗"
			if in.Correct {
				mark = "✓"
			}
			fmt.Printf("%s  %s  %s/%s  %s\n",
				in.CreatedAt.Format("2006-01-02 15:04:05"), mark, in.Subject, in.SkillID, in.ID)
		}
		fmt.Printf("%d pending, %d synced. Last pull: %s\n", len(pending), synced, orNever(cp.LastPulledAt))
		return nil
	},
}

func orNever(token string) string {
	if token == "" {
		return "never"
	}
	return token
}
