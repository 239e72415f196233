package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the daemon is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Health(cmd.Context()); err != nil {
				return fmt.Errorf("daemon is not reachable: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon is running.")
			return nil
		},
	}
}
