package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podscrub/internal/ipc"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <post-guid>",
		Short: "Queue a post for ad removal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guid := strings.TrimSpace(args[0])
			if guid == "" {
				return errors.New("post guid is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ProcessPost(guid)
				if err != nil {
					return err
				}
				job := resp.Job
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s %s for post %s\n",
					job.ID, strings.ToLower(formatStatusLabel(job.Status)), job.PostGUID)
				return nil
			})
		},
	}
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var trigger string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue all eligible posts for processing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(trigger, "cli enqueue")
				if err != nil {
					return err
				}
				if resp.Created == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No eligible posts to queue")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d posts\n", resp.Created)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&trigger, "trigger", "manual", "Trigger label recorded on the run")
	return cmd
}
