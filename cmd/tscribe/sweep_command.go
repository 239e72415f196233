package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tscribe/internal/logging"
	"tscribe/internal/storage"
)

// newSweepCommand removes stale working directories directly, without going
// through the daemon. Useful after a crash left orphaned workspaces behind.
func newSweepCommand(ctx *commandContext) *cobra.Command {
	var maxAgeHours int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale job working directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			hours := maxAgeHours
			if hours <= 0 {
				hours = cfg.Workflow.CleanupMaxAgeHours
			}
			removed := storage.Sweep(logging.NewNop(), cfg.Paths.DataDir, time.Duration(hours)*time.Hour)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale directories from %s\n", removed, cfg.Paths.DataDir)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAgeHours, "max-age-hours", 0, "Age threshold in hours (default from config)")
	return cmd
}
