package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"podscrub/internal/logging"
	"podscrub/internal/services"
	"podscrub/internal/store"
)

// supersededMessage is recorded on active jobs cancelled because a newer job
// took over their post.
const supersededMessage = "Superseded by a newer processing job"

func (r *Registry) createJob(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	jobData, ok := mapParam(params, "job_data")
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "actions", "create_job", "job_data required", nil)
	}
	guid, err := requireString(jobData, "create_job", "post_guid")
	if err != nil {
		return nil, err
	}

	id, ok := stringParam(jobData, "id")
	if !ok {
		id = uuid.NewString()
	}
	job := &store.ProcessingJob{
		ID:        id,
		PostGUID:  guid,
		Status:    store.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if requester, ok := stringParam(jobData, "requested_by_user_id"); ok {
		job.RequestedByUserID = requester
	}
	if billing, ok := stringParam(jobData, "billing_user_id"); ok {
		job.BillingUserID = billing
	}
	if steps, ok := intParam(jobData, "total_steps"); ok && steps > 0 {
		job.TotalSteps = steps
	}

	// Attach to the current epoch when one exists; otherwise the job stays
	// orphaned until reassign_pending_jobs or dequeue picks it up.
	run, err := tx.Run(ctx)
	if err != nil {
		return nil, err
	}
	if run != nil {
		job.RunID = run.ID
	}

	if err := tx.InsertJob(ctx, job); err != nil {
		return nil, err
	}
	if _, err := refreshRunCounters(ctx, tx); err != nil {
		return nil, err
	}
	return map[string]any{"job_id": job.ID}, nil
}

// dequeueJob claims the oldest pending job unless one is already running.
// Both the check and the claim happen inside the same transaction under the
// single writer, so no second dequeue can interleave.
func (r *Registry) dequeueJob(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	running, err := tx.RunningJobCount(ctx)
	if err != nil {
		return nil, err
	}
	if running > 0 {
		return map[string]any{}, nil
	}
	job, err := tx.OldestPendingJob(ctx)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return map[string]any{}, nil
	}

	now := time.Now().UTC()
	job.Status = store.StatusRunning
	job.StartedAt = &now
	// A requeued job may still carry its requeue note; the fresh attempt
	// starts clean.
	job.ErrorMessage = ""
	if runID, ok := int64Param(params, "run_id"); ok && runID > 0 {
		job.RunID = runID
	} else if job.RunID == 0 {
		run, err := tx.Run(ctx)
		if err != nil {
			return nil, err
		}
		if run != nil {
			job.RunID = run.ID
		}
	}
	if err := tx.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	if _, err := refreshRunCounters(ctx, tx); err != nil {
		return nil, err
	}
	return map[string]any{"job_id": job.ID, "post_guid": job.PostGUID}, nil
}

func (r *Registry) updateJobStatus(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	jobID, err := requireString(params, "update_job_status", "job_id")
	if err != nil {
		return nil, err
	}
	statusText, err := requireString(params, "update_job_status", "status")
	if err != nil {
		return nil, err
	}
	status, err := store.ParseJobStatus(statusText)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "actions", "update_job_status", err.Error(), nil)
	}
	job, err := tx.JobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "actions", "update_job_status",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	// Terminal states admit no further transitions. In particular a job
	// cancelled mid-flight must stay cancelled when the worker later reports
	// completed or failed.
	if job.Status.IsTerminal() && status != job.Status {
		return nil, services.Wrap(services.ErrValidation, "actions", "update_job_status",
			fmt.Sprintf("job %s is %s; refusing transition to %s", jobID, job.Status, status), nil)
	}

	now := time.Now().UTC()
	job.Status = status
	if step, ok := intParam(params, "step"); ok {
		job.CurrentStep = step
	}
	if total, ok := intParam(params, "total_steps"); ok && total > 0 {
		job.TotalSteps = total
	}
	if name, ok := stringParam(params, "step_name"); ok {
		job.StepName = name
	}
	if progress, ok := floatParam(params, "progress"); ok {
		job.ProgressPercentage = progress
	}
	if message, ok := presentString(params, "error_message"); ok {
		job.ErrorMessage = message
	}
	if status == store.StatusRunning && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status.IsTerminal() && job.CompletedAt == nil {
		job.CompletedAt = &now
	}
	if err := tx.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	if _, err := refreshRunCounters(ctx, tx); err != nil {
		return nil, err
	}
	return map[string]any{"job_id": jobID, "status": string(status)}, nil
}

func (r *Registry) markCancelled(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	jobID, err := requireString(params, "mark_cancelled", "job_id")
	if err != nil {
		return nil, err
	}
	job, err := tx.JobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "actions", "mark_cancelled",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	if job.Status.IsTerminal() {
		return map[string]any{"job_id": jobID, "status": string(job.Status)}, nil
	}

	now := time.Now().UTC()
	job.Status = store.StatusCancelled
	if reason, ok := stringParam(params, "reason"); ok {
		job.ErrorMessage = reason
	}
	job.CompletedAt = &now
	if err := tx.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	if _, err := refreshRunCounters(ctx, tx); err != nil {
		return nil, err
	}
	return map[string]any{"job_id": jobID, "status": string(store.StatusCancelled)}, nil
}

func (r *Registry) cancelExistingJobs(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	guid, err := requireString(params, "cancel_existing_jobs", "post_guid")
	if err != nil {
		return nil, err
	}
	currentJobID, _ := stringParam(params, "current_job_id")

	jobs, err := tx.JobsForPost(ctx, guid, store.ActiveJobStatuses...)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	count := 0
	for _, job := range jobs {
		if job.ID == currentJobID {
			continue
		}
		job.Status = store.StatusCancelled
		job.ErrorMessage = supersededMessage
		job.CompletedAt = &now
		if err := tx.UpdateJob(ctx, job); err != nil {
			return nil, err
		}
		count++
	}
	if count > 0 {
		if _, err := refreshRunCounters(ctx, tx); err != nil {
			return nil, err
		}
	}
	return map[string]any{"count": count}, nil
}

func (r *Registry) cleanupStaleJobs(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	seconds, ok := intParam(params, "older_than_seconds")
	if !ok || seconds < 0 {
		return nil, services.Wrap(services.ErrValidation, "actions", "cleanup_stale_jobs",
			"older_than_seconds required", nil)
	}
	cutoff := time.Now().UTC().Add(-time.Duration(seconds) * time.Second)
	jobs, err := tx.PendingJobsOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	count := 0
	for _, job := range jobs {
		job.Status = store.StatusFailed
		job.ErrorMessage = store.StaleJobMessage
		job.CompletedAt = &now
		if err := tx.UpdateJob(ctx, job); err != nil {
			return nil, err
		}
		count++
	}
	if count > 0 {
		if _, err := refreshRunCounters(ctx, tx); err != nil {
			return nil, err
		}
	}
	return map[string]any{"count": count}, nil
}

// recoverOrphanedJobs puts jobs left in running back into the queue. Only
// one daemon can hold the lock file, so at startup every running row belongs
// to a dead process; requeueing preserves created_at and with it the job's
// place in the oldest-first order.
func (r *Registry) recoverOrphanedJobs(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	jobs, err := tx.RunningJobs(ctx)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, job := range jobs {
		job.Status = store.StatusPending
		job.StartedAt = nil
		job.CurrentStep = 0
		job.StepName = ""
		job.ProgressPercentage = 0
		job.ErrorMessage = store.InterruptedJobMessage
		if err := tx.UpdateJob(ctx, job); err != nil {
			return nil, err
		}
		r.logger.Info("requeued interrupted job",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldPostGUID, job.PostGUID))
		count++
	}
	if count > 0 {
		if _, err := refreshRunCounters(ctx, tx); err != nil {
			return nil, err
		}
	}
	return map[string]any{"count": count}, nil
}

func (r *Registry) clearAllJobs(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	deleted, err := tx.DeleteAllJobs(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := refreshRunCounters(ctx, tx); err != nil {
		return nil, err
	}
	return map[string]any{"count": int(deleted)}, nil
}

// clearPostProcessingData resets a post for reprocessing: the processed
// audio reference is emptied and the post's job history removed. Row deletes
// are best-effort; a failed delete is logged and skipped so the sweep always
// finishes.
func (r *Registry) clearPostProcessingData(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	guid, err := requireString(params, "clear_post_processing_data", "post_guid")
	if err != nil {
		return nil, err
	}
	post, err := tx.PostByGUID(ctx, guid)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, services.Wrap(services.ErrNotFound, "actions", "clear_post_processing_data",
			fmt.Sprintf("post %q not found", guid), nil)
	}
	if post.ProcessedAudioPath != "" {
		if err := tx.SetPostProcessedPath(ctx, guid, ""); err != nil {
			return nil, err
		}
	}

	ids, err := tx.JobIDsForPost(ctx, guid)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, id := range ids {
		existed, err := tx.DeleteJob(ctx, id)
		if err != nil {
			r.logger.Warn("skipping job row that failed to delete",
				logging.String(logging.FieldJobID, id),
				logging.String(logging.FieldPostGUID, guid),
				logging.Error(err))
			continue
		}
		if existed {
			count++
		}
	}
	if _, err := refreshRunCounters(ctx, tx); err != nil {
		return nil, err
	}
	return map[string]any{"count": count}, nil
}

// completeJobAndPublish is the scheduler's happy-path composite: terminal
// completed status plus the post's processed-audio pointer in one commit. A
// cancelled job refuses the transition, which also rolls back the publish.
func (r *Registry) completeJobAndPublish(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error) {
	jobID, err := requireString(params, "complete_job_and_publish", "job_id")
	if err != nil {
		return nil, err
	}
	guid, err := requireString(params, "complete_job_and_publish", "post_guid")
	if err != nil {
		return nil, err
	}
	outputPath, err := requireString(params, "complete_job_and_publish", "output_path")
	if err != nil {
		return nil, err
	}
	job, err := tx.JobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "actions", "complete_job_and_publish",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	if job.Status.IsTerminal() && job.Status != store.StatusCompleted {
		return nil, services.Wrap(services.ErrValidation, "actions", "complete_job_and_publish",
			fmt.Sprintf("job %s is %s; refusing completion", jobID, job.Status), nil)
	}

	now := time.Now().UTC()
	job.Status = store.StatusCompleted
	job.ProgressPercentage = 100
	if job.TotalSteps > 0 {
		job.CurrentStep = job.TotalSteps
	}
	if job.CompletedAt == nil {
		job.CompletedAt = &now
	}
	if err := tx.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := tx.SetPostProcessedPath(ctx, guid, outputPath); err != nil {
		return nil, err
	}
	if _, err := refreshRunCounters(ctx, tx); err != nil {
		return nil, err
	}
	return map[string]any{"job_id": jobID, "status": string(store.StatusCompleted)}, nil
}
