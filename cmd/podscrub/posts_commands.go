package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podscrub/internal/api"
	"podscrub/internal/command"
	"podscrub/internal/store"
)

func newPostsCommand(ctx *commandContext) *cobra.Command {
	postsCmd := &cobra.Command{
		Use:   "posts",
		Short: "Manage podcast posts",
	}

	postsCmd.AddCommand(newPostsListCommand(ctx))
	postsCmd.AddCommand(newPostsShowCommand(ctx))
	postsCmd.AddCommand(newPostsAddCommand(ctx))
	postsCmd.AddCommand(newPostsRemoveCommand(ctx))
	postsCmd.AddCommand(newPostsResetCommand(ctx))

	return postsCmd
}

func newPostsListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReadStore(func(st *store.Store) error {
				rows, err := st.ListPosts(cmd.Context(), limit)
				if err != nil {
					return err
				}
				posts := api.FromPosts(rows)
				if len(posts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No posts found")
					return nil
				}
				renderTable(cmd.OutOrStdout(),
					[]string{"GUID", "Title", "Processed", "Published"},
					buildPostRows(posts),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft})
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of posts to list (0 for all)")
	return cmd
}

func newPostsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <guid>",
		Short: "Show one post with its latest job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guid := strings.TrimSpace(args[0])
			return ctx.withReadStore(func(st *store.Store) error {
				post, err := st.PostByGUID(cmd.Context(), guid)
				if err != nil {
					return err
				}
				if post == nil {
					return fmt.Errorf("post %s not found", guid)
				}
				view := api.FromPost(post)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "GUID:        %s\n", view.GUID)
				fmt.Fprintf(out, "Title:       %s\n", view.Title)
				if view.AudioURL != "" {
					fmt.Fprintf(out, "Audio URL:   %s\n", view.AudioURL)
				}
				fmt.Fprintf(out, "Processed:   %s\n", yesNo(view.Processed))
				if view.ProcessedAudioPath != "" {
					fmt.Fprintf(out, "Clean audio: %s\n", view.ProcessedAudioPath)
				}
				if view.PublishedAt != "" {
					fmt.Fprintf(out, "Published:   %s\n", formatDisplayTime(view.PublishedAt))
				}

				job, err := st.LatestJobForPost(cmd.Context(), guid)
				if err != nil {
					return err
				}
				if job != nil {
					jobView := api.FromJob(job)
					fmt.Fprintf(out, "Latest job:  %s (%s)\n", jobView.ID, formatStatusLabel(jobView.Status))
				}
				return nil
			})
		},
	}
}

func newPostsAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var audioURL string
	var feedID int64
	var published string

	cmd := &cobra.Command{
		Use:   "add <guid>",
		Short: "Register a post for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guid := strings.TrimSpace(args[0])
			if guid == "" {
				return errors.New("post guid is required")
			}
			data := map[string]any{"guid": guid}
			if title != "" {
				data["title"] = title
			}
			if audioURL != "" {
				data["audio_url"] = audioURL
			}
			if feedID > 0 {
				data["feed_id"] = feedID
			}
			if published != "" {
				if _, err := time.Parse(time.RFC3339, published); err != nil {
					return fmt.Errorf("invalid --published value %q: expected RFC3339", published)
				}
				data["published_at"] = published
			}

			if _, err := ctx.submit(cmd.Context(), command.TypeCreate, "post", data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Post %s added\n", guid)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Post title")
	cmd.Flags().StringVar(&audioURL, "audio-url", "", "Source audio URL")
	cmd.Flags().Int64Var(&feedID, "feed-id", 0, "Owning feed id")
	cmd.Flags().StringVar(&published, "published", "", "Publication timestamp (RFC3339)")
	return cmd
}

func newPostsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <guid>",
		Short: "Delete a post and its job history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guid := strings.TrimSpace(args[0])
			data, err := ctx.submit(cmd.Context(), command.TypeDelete, "post", map[string]any{"id": guid})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jobs := intResult(data, "jobs_deleted"); jobs > 0 {
				fmt.Fprintf(out, "Post %s removed along with %d jobs\n", guid, jobs)
				return nil
			}
			fmt.Fprintf(out, "Post %s removed\n", guid)
			return nil
		},
	}
}

func newPostsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <guid>",
		Short: "Clear a post's processed audio and job history so it can be reprocessed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guid := strings.TrimSpace(args[0])
			if _, err := ctx.submit(cmd.Context(), command.TypeAction, "clear_post_processing_data",
				map[string]any{"post_guid": guid}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Post %s reset\n", guid)
			return nil
		},
	}
}
