package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscrub/internal/ipc"
)

func newRateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rate",
		Short: "Show LLM token budget usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RateStats()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				colorize := isTerminal(stdout)
				fmt.Fprintln(stdout, renderStatusLine("Tokens", rateKind(&resp.Rate), formatRate(&resp.Rate), colorize))
				return nil
			})
		},
	}
}
