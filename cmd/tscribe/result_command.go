package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tscribe/internal/transcript"
)

func newResultCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Download a finished job's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, ok := transcript.ParseFormat(formatFlag)
			if !ok {
				return fmt.Errorf("unsupported format %q, expected one of: %s",
					formatFlag, strings.Join(transcript.Formats(), ", "))
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.Result(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}

			if outputFlag == "" || outputFlag == "-" {
				fmt.Fprint(cmd.OutOrStdout(), result.Content)
				if !strings.HasSuffix(result.Content, "\n") {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				return nil
			}

			path := outputFlag
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = strings.TrimRight(path, "/") + "/" + result.Filename
			}
			if err := os.WriteFile(path, []byte(result.Content), 0o644); err != nil {
				return fmt.Errorf("write transcript: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", "txt", "Output format: "+strings.Join(transcript.Formats(), ", "))
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write to a file or directory instead of stdout")
	return cmd
}
