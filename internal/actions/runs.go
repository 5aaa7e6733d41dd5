package actions

import (
	"context"
	"time"

	"podscrub/internal/logging"
	"podscrub/internal/services"
	"podscrub/internal/store"
)

// ensureActiveRun idempotently creates the singleton run row. When the run
// already exists and carries no live jobs, its counters reset so a fresh
// batch starts from zero.
func (r *Registry) ensureActiveRun(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	trigger, _ := stringParam(params, "trigger")
	if cause, ok := stringParam(params, "context"); ok {
		r.logger.Debug("ensuring active run",
			logging.String("trigger", trigger),
			logging.String("context", cause))
	}

	now := time.Now().UTC()
	run, err := tx.Run(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		// A fresh run starts with no counter cutoff so jobs that predate it
		// still count once reassigned into the run.
		run = &store.Run{
			ID:        store.RunID,
			Status:    store.RunStatusRunning,
			Trigger:   trigger,
			StartedAt: &now,
		}
		if err := tx.InsertRun(ctx, run); err != nil {
			return nil, err
		}
		return map[string]any{"run_id": run.ID}, nil
	}

	live, err := tx.ActiveJobCount(ctx)
	if err != nil {
		return nil, err
	}
	if live == 0 {
		run.Status = store.RunStatusRunning
		if trigger != "" {
			run.Trigger = trigger
		}
		run.StartedAt = &now
		run.CompletedAt = nil
		run.CountersResetAt = &now
		zeroRunCounters(run)
		if err := tx.UpdateRun(ctx, run); err != nil {
			return nil, err
		}
	}
	return map[string]any{"run_id": run.ID}, nil
}

func (r *Registry) reassignPendingJobs(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	runID, ok := int64Param(params, "run_id")
	if !ok || runID <= 0 {
		runID = store.RunID
	}
	moved, err := tx.ReassignPendingJobs(ctx, runID)
	if err != nil {
		return nil, err
	}
	if moved > 0 {
		if _, err := refreshRunCounters(ctx, tx); err != nil {
			return nil, err
		}
	}
	return map[string]any{"count": int(moved)}, nil
}

func (r *Registry) recalculateRunCounts(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	run, err := refreshRunCounters(ctx, tx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, services.Wrap(services.ErrNotFound, "actions", "recalculate_run_counts", "no run exists", nil)
	}
	return map[string]any{
		"total_jobs":     run.TotalJobs,
		"queued_jobs":    run.QueuedJobs,
		"running_jobs":   run.RunningJobs,
		"completed_jobs": run.CompletedJobs,
		"failed_jobs":    run.FailedJobs,
		"skipped_jobs":   run.SkippedJobs,
	}, nil
}

func (r *Registry) resetRunCounters(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	run, err := tx.Run(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, services.Wrap(services.ErrNotFound, "actions", "reset_run_counters", "no run exists", nil)
	}
	now := time.Now().UTC()
	zeroRunCounters(run)
	run.CountersResetAt = &now
	if err := tx.UpdateRun(ctx, run); err != nil {
		return nil, err
	}
	return map[string]any{"run_id": run.ID}, nil
}

// refreshRunCounters recomputes the run's derived counters from job rows
// created at or after the last counter reset. Cancelled jobs count toward
// failed, keeping the total equal to the sum of the other five columns.
// Returns (nil, nil) when no run row exists yet.
func refreshRunCounters(ctx context.Context, tx *store.WriteTx) (*store.Run, error) {
	run, err := tx.Run(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}
	counts, err := tx.CountJobsByStatusSince(ctx, run.ID, run.CountersResetAt)
	if err != nil {
		return nil, err
	}
	run.QueuedJobs = counts[store.StatusPending]
	run.RunningJobs = counts[store.StatusRunning]
	run.CompletedJobs = counts[store.StatusCompleted]
	run.FailedJobs = counts[store.StatusFailed] + counts[store.StatusCancelled]
	run.SkippedJobs = counts[store.StatusSkipped]
	run.TotalJobs = run.QueuedJobs + run.RunningJobs + run.CompletedJobs + run.FailedJobs + run.SkippedJobs
	if err := tx.UpdateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func zeroRunCounters(run *store.Run) {
	run.TotalJobs = 0
	run.QueuedJobs = 0
	run.RunningJobs = 0
	run.CompletedJobs = 0
	run.FailedJobs = 0
	run.SkippedJobs = 0
}
