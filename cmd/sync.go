package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rahulv/skilltrack/internal/app"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle now",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return fmt.Errorf("resolve DB path: %w", err)
		}

		a, err := app.New(cfg, app.Options{DBPath: dbPath})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Engine.RunSync(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		fmt.Printf("Pulled %d, pushed %d, acked %d. Checkpoint: %s\n",
			res.Pulled, res.Pushed, res.Acked, res.Checkpoint)
		return nil
	},
}
