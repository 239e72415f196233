package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Queue a media URL for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.Submit(cmd.Context(), args[0], language)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s\n", shortID(view.ID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Preferred transcript language (e.g. de, en)")
	return cmd
}
