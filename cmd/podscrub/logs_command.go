package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podscrub/internal/config"
	"podscrub/internal/ipc"
	"podscrub/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			socket := ctx.socketPath()
			client, err := ipc.Dial(socket)
			if err == nil {
				defer client.Close()
				return tailDaemonLogs(cmd, client, lines, follow)
			}
			if !daemonUnavailable(err) {
				return wrapDialError(err, socket)
			}
			cfg, cfgErr := ctx.ensureConfig()
			if cfgErr != nil {
				return cfgErr
			}
			return tailLogFile(cmd, cfg, lines, follow)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}

// tailDaemonLogs streams log lines over IPC. The first request tails the last
// N lines; follow-up requests resume from the offset the daemon returned.
func tailDaemonLogs(cmd *cobra.Command, client *ipc.Client, lines int, follow bool) error {
	goCtx := cmd.Context()
	offset, limit := initialTailWindow(lines)
	printed := false

	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     follow,
			WaitMillis: 1000,
		})
		if err != nil {
			return fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		select {
		case <-goCtx.Done():
			return nil
		default:
		}
	}
}

// tailLogFile reads the daemon log file directly when no daemon is running.
func tailLogFile(cmd *cobra.Command, cfg *config.Config, lines int, follow bool) error {
	goCtx := cmd.Context()
	path := cfg.LogPath()
	offset, limit := initialTailWindow(lines)
	printed := false

	for {
		result, err := logs.Tail(goCtx, path, logs.TailOptions{
			Offset: offset,
			Limit:  limit,
			Follow: follow,
			Wait:   time.Second,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range result.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		offset = result.Offset
		limit = 0
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		select {
		case <-goCtx.Done():
			return nil
		default:
		}
	}
}

// initialTailWindow converts a line count into the offset/limit pair the tail
// protocol expects: a negative offset tails the last N lines, offset zero
// reads from the start.
func initialTailWindow(lines int) (int64, int) {
	limit := lines
	if limit < 0 {
		limit = 0
	}
	offset := int64(-1)
	if limit == 0 {
		offset = 0
	}
	return offset, limit
}
