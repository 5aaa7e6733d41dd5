package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"podscrub/internal/api"
	"podscrub/internal/command"
	"podscrub/internal/store"
)

func newFeedsCommand(ctx *commandContext) *cobra.Command {
	feedsCmd := &cobra.Command{
		Use:   "feeds",
		Short: "Manage podcast feeds",
	}

	feedsCmd.AddCommand(newFeedsListCommand(ctx))
	feedsCmd.AddCommand(newFeedsAddCommand(ctx))
	feedsCmd.AddCommand(newFeedsRemoveCommand(ctx))

	return feedsCmd
}

func newFeedsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subscribed feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReadStore(func(st *store.Store) error {
				rows, err := st.ListFeeds(cmd.Context())
				if err != nil {
					return err
				}
				feeds := api.FromFeeds(rows)
				if len(feeds) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No feeds found")
					return nil
				}
				renderTable(cmd.OutOrStdout(),
					[]string{"ID", "URL", "Title", "Last Checked"},
					buildFeedRows(feeds),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
				return nil
			})
		},
	}
}

func newFeedsAddCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Subscribe to a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimSpace(args[0])
			if url == "" {
				return errors.New("feed url is required")
			}
			data := map[string]any{"url": url}
			if title != "" {
				data["title"] = title
			}
			result, err := ctx.submit(cmd.Context(), command.TypeCreate, "feed", data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Feed %d added\n", intResult(result, "id"))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Feed title")
	return cmd
}

func newFeedsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Unsubscribe from a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid feed id %q", args[0])
			}
			// The passthrough carries ids as strings; the action layer parses
			// numeric keys back out.
			if _, err := ctx.submit(cmd.Context(), command.TypeDelete, "feed",
				map[string]any{"id": strconv.FormatInt(id, 10)}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Feed %d removed\n", id)
			return nil
		},
	}
}
