package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podscrub/internal/api"
	"podscrub/internal/ipc"
	"podscrub/internal/store"
)

var jobTableHeaders = []string{"ID", "Post", "Status", "Progress", "Created"}

func jobTableAligns() []columnAlignment {
	return []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage processing jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	jobsCmd.AddCommand(newJobsCleanupCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var jobs []api.JobView
				if client != nil {
					resp, err := client.JobsList(listStatuses, limit)
					if err != nil {
						return err
					}
					jobs = resp.Jobs
				} else {
					statuses, err := parseJobStatuses(listStatuses)
					if err != nil {
						return err
					}
					rows, err := st.ListJobs(cmd.Context(), limit, statuses...)
					if err != nil {
						return err
					}
					jobs = api.FromJobs(rows)
				}

				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}
				renderTable(cmd.OutOrStdout(), jobTableHeaders, buildJobRows(jobs), jobTableAligns())
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs to list (0 for all)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var job api.JobView
				if client != nil {
					resp, err := client.JobGet(id)
					if err != nil {
						return err
					}
					job = resp.Job
				} else {
					row, err := st.JobByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if row == nil {
						return fmt.Errorf("job %s not found", id)
					}
					job = api.FromJob(row)
				}
				printJobDetail(cmd, job)
				return nil
			})
		},
	}
}

func printJobDetail(cmd *cobra.Command, job api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", job.ID)
	fmt.Fprintf(out, "Post:        %s\n", job.PostGUID)
	fmt.Fprintf(out, "Status:      %s\n", formatStatusLabel(job.Status))
	fmt.Fprintf(out, "Progress:    %s\n", formatProgress(job.Progress))
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:       %s\n", job.ErrorMessage)
	}
	if job.RequestedBy != "" {
		fmt.Fprintf(out, "Requested:   %s\n", job.RequestedBy)
	}
	if job.RunID > 0 {
		fmt.Fprintf(out, "Run:         %d\n", job.RunID)
	}
	fmt.Fprintf(out, "Created:     %s\n", formatDisplayTime(job.CreatedAt))
	if job.StartedAt != "" {
		fmt.Fprintf(out, "Started:     %s\n", formatDisplayTime(job.StartedAt))
	}
	if job.CompletedAt != "" {
		fmt.Fprintf(out, "Completed:   %s\n", formatDisplayTime(job.CompletedAt))
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CancelJob(id, reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", resp.Job.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the job")
	return cmd
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all job history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var removed int
				if client != nil {
					resp, err := client.ClearJobs()
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					result, err := localWriteClient(st).Action(cmd.Context(), "clear_all_jobs", nil)
					if err != nil {
						return err
					}
					if err := result.Err(); err != nil {
						return err
					}
					removed = intResult(result.Data, "count")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d jobs\n", removed)
				return nil
			})
		},
	}
}

func newJobsCleanupCommand(ctx *commandContext) *cobra.Command {
	var olderThan int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Fail pending jobs stuck longer than the stale threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var updated int
				if client != nil {
					resp, err := client.CleanupStale(olderThan)
					if err != nil {
						return err
					}
					updated = resp.Updated
				} else {
					seconds := olderThan
					if seconds <= 0 {
						if cfg := ctx.configValue(); cfg != nil {
							seconds = cfg.Scheduler.StaleJobSeconds
						}
					}
					result, err := localWriteClient(st).Action(cmd.Context(), "cleanup_stale_jobs",
						map[string]any{"older_than_seconds": seconds})
					if err != nil {
						return err
					}
					if err := result.Err(); err != nil {
						return err
					}
					updated = intResult(result.Data, "count")
				}
				if updated == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stale jobs found")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Failed %d stale jobs\n", updated)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&olderThan, "older-than", 0, "Age threshold in seconds (0 uses the configured default)")
	return cmd
}

func parseJobStatuses(values []string) ([]store.JobStatus, error) {
	statuses := make([]store.JobStatus, 0, len(values))
	for _, value := range values {
		status, err := store.ParseJobStatus(value)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// intResult reads an integer out of a write result's data map. Values arrive
// as native ints from the local executor and as float64 after a JSON hop.
func intResult(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
