package actions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"podscrub/internal/actions"
	"podscrub/internal/services"
	"podscrub/internal/store"
)

func createJob(t *testing.T, st *store.Store, reg *actions.Registry, guid string) string {
	t.Helper()
	data := runAction(t, st, reg, "create_job", map[string]any{
		"job_data": map[string]any{"post_guid": guid, "total_steps": 5},
	})
	id, ok := data["job_id"].(string)
	if !ok || id == "" {
		t.Fatalf("create_job returned no job id: %#v", data)
	}
	return id
}

func mustJob(t *testing.T, st *store.Store, id string) *store.ProcessingJob {
	t.Helper()
	job, err := st.JobByID(context.Background(), id)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if job == nil {
		t.Fatalf("job %s not found", id)
	}
	return job
}

func mustRun(t *testing.T, st *store.Store) *store.Run {
	t.Helper()
	run, err := st.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run == nil {
		t.Fatal("expected run row")
	}
	return run
}

func TestDequeueClaimsOldestPendingOnly(t *testing.T) {
	st, reg := newExecutor(t)

	runAction(t, st, reg, "ensure_active_run", map[string]any{"trigger": "test"})
	first := createJob(t, st, reg, "post-a")
	second := createJob(t, st, reg, "post-b")
	createJob(t, st, reg, "post-c")

	data := runAction(t, st, reg, "dequeue_job", nil)
	if data["job_id"] != first || data["post_guid"] != "post-a" {
		t.Fatalf("expected oldest job %s dequeued, got %#v", first, data)
	}
	if mustJob(t, st, first).Status != store.StatusRunning {
		t.Fatal("expected dequeued job running")
	}
	if mustJob(t, st, first).StartedAt == nil {
		t.Fatal("expected started_at stamped on dequeue")
	}

	// One job is running, so the queue refuses to hand out another.
	data = runAction(t, st, reg, "dequeue_job", nil)
	if len(data) != 0 {
		t.Fatalf("expected empty dequeue while a job runs, got %#v", data)
	}

	runAction(t, st, reg, "update_job_status", map[string]any{
		"job_id": first,
		"status": "completed",
	})
	data = runAction(t, st, reg, "dequeue_job", nil)
	if data["job_id"] != second {
		t.Fatalf("expected %s dequeued next, got %#v", second, data)
	}

	run := mustRun(t, st)
	if run.QueuedJobs != 1 || run.RunningJobs != 1 || run.CompletedJobs != 1 || run.TotalJobs != 3 {
		t.Fatalf("unexpected counters after two dequeues: %+v", run)
	}
}

func TestDequeueOnEmptyQueueSucceedsWithNoJob(t *testing.T) {
	st, reg := newExecutor(t)

	data := runAction(t, st, reg, "dequeue_job", nil)
	if len(data) != 0 {
		t.Fatalf("expected empty result, got %#v", data)
	}
}

func TestCreateJobHonorsCallerSuppliedID(t *testing.T) {
	st, reg := newExecutor(t)

	data := runAction(t, st, reg, "create_job", map[string]any{
		"job_data": map[string]any{"id": "job-fixed", "post_guid": "post-a"},
	})
	if data["job_id"] != "job-fixed" {
		t.Fatalf("expected caller id kept, got %#v", data)
	}
	if mustJob(t, st, "job-fixed").PostGUID != "post-a" {
		t.Fatal("expected job persisted under caller id")
	}
}

func TestUpdateJobStatusRefusesLeavingTerminalState(t *testing.T) {
	st, reg := newExecutor(t)

	id := createJob(t, st, reg, "post-a")
	runAction(t, st, reg, "mark_cancelled", map[string]any{
		"job_id": id,
		"reason": "user request",
	})

	// A worker finishing after cancellation must not resurrect the job.
	_, err := execAction(st, reg, "update_job_status", map[string]any{
		"job_id": id,
		"status": "completed",
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation refusal, got %v", err)
	}

	job := mustJob(t, st, id)
	if job.Status != store.StatusCancelled {
		t.Fatalf("expected job to stay cancelled, got %s", job.Status)
	}
	if job.ErrorMessage != "user request" {
		t.Fatalf("expected cancellation reason preserved, got %q", job.ErrorMessage)
	}
}

func TestUpdateJobStatusAllowsSameTerminalStatus(t *testing.T) {
	st, reg := newExecutor(t)

	id := createJob(t, st, reg, "post-a")
	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": id, "status": "failed", "error_message": "boom"})
	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": id, "status": "failed", "error_message": "boom: detail"})

	if got := mustJob(t, st, id).ErrorMessage; got != "boom: detail" {
		t.Fatalf("expected message refresh on same status, got %q", got)
	}
}

func TestUpdateJobStatusClearsErrorMessage(t *testing.T) {
	st, reg := newExecutor(t)

	id := createJob(t, st, reg, "post-a")
	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": id, "status": "running", "error_message": "transient hiccup"})

	// An explicit empty string clears the field; omitting the key leaves it.
	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": id, "status": "running", "error_message": ""})
	if got := mustJob(t, st, id).ErrorMessage; got != "" {
		t.Fatalf("expected empty message to clear the field, got %q", got)
	}

	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": id, "status": "running", "error_message": "second hiccup"})
	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": id, "status": "running"})
	if got := mustJob(t, st, id).ErrorMessage; got != "second hiccup" {
		t.Fatalf("expected absent key to leave the message, got %q", got)
	}
}

func TestUpdateJobStatusRejectsUnknownStatus(t *testing.T) {
	st, reg := newExecutor(t)

	id := createJob(t, st, reg, "post-a")
	_, err := execAction(st, reg, "update_job_status", map[string]any{
		"job_id": id,
		"status": "paused",
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkCancelledIsNoOpOnFinishedJob(t *testing.T) {
	st, reg := newExecutor(t)

	id := createJob(t, st, reg, "post-a")
	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": id, "status": "completed"})

	data := runAction(t, st, reg, "mark_cancelled", map[string]any{"job_id": id, "reason": "too late"})
	if data["status"] != "completed" {
		t.Fatalf("expected completed echoed back, got %#v", data)
	}
	job := mustJob(t, st, id)
	if job.Status != store.StatusCompleted || job.ErrorMessage != "" {
		t.Fatalf("expected finished job untouched, got %+v", job)
	}
}

func TestCancelExistingJobsSparesCurrent(t *testing.T) {
	st, reg := newExecutor(t)

	stale1 := createJob(t, st, reg, "post-a")
	stale2 := createJob(t, st, reg, "post-a")
	current := createJob(t, st, reg, "post-a")
	other := createJob(t, st, reg, "post-b")

	data := runAction(t, st, reg, "cancel_existing_jobs", map[string]any{
		"post_guid":      "post-a",
		"current_job_id": current,
	})
	if data["count"] != 2 {
		t.Fatalf("expected two cancellations, got %#v", data)
	}
	for _, id := range []string{stale1, stale2} {
		job := mustJob(t, st, id)
		if job.Status != store.StatusCancelled {
			t.Fatalf("expected %s cancelled, got %s", id, job.Status)
		}
		if job.ErrorMessage == "" {
			t.Fatalf("expected superseded reason on %s", id)
		}
	}
	if mustJob(t, st, current).Status != store.StatusPending {
		t.Fatal("expected current job spared")
	}
	if mustJob(t, st, other).Status != store.StatusPending {
		t.Fatal("expected other post's job spared")
	}
}

func TestCleanupStaleJobsFailsOldPending(t *testing.T) {
	st, reg := newExecutor(t)
	ctx := context.Background()

	old := &store.ProcessingJob{
		ID:        "job-old",
		PostGUID:  "post-a",
		Status:    store.StatusPending,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	err := st.WithWriteTx(ctx, func(ctx context.Context, tx *store.WriteTx) error {
		return tx.InsertJob(ctx, old)
	})
	if err != nil {
		t.Fatalf("seed old job failed: %v", err)
	}
	fresh := createJob(t, st, reg, "post-b")

	data := runAction(t, st, reg, "cleanup_stale_jobs", map[string]any{"older_than_seconds": 3600})
	if data["count"] != 1 {
		t.Fatalf("expected one stale job, got %#v", data)
	}
	staleJob := mustJob(t, st, "job-old")
	if staleJob.Status != store.StatusFailed || staleJob.ErrorMessage != store.StaleJobMessage {
		t.Fatalf("expected stale job failed with message, got %+v", staleJob)
	}
	if mustJob(t, st, fresh).Status != store.StatusPending {
		t.Fatal("expected fresh job untouched")
	}

	if _, err := execAction(st, reg, "cleanup_stale_jobs", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error without threshold, got %v", err)
	}
}

func TestRecoverOrphanedJobsRequeues(t *testing.T) {
	st, reg := newExecutor(t)

	runAction(t, st, reg, "ensure_active_run", map[string]any{"trigger": "test"})
	first := createJob(t, st, reg, "post-a")
	second := createJob(t, st, reg, "post-b")

	runAction(t, st, reg, "dequeue_job", nil)
	runAction(t, st, reg, "update_job_status", map[string]any{
		"job_id":    first,
		"status":    "running",
		"step":      2,
		"step_name": "transcribe",
		"progress":  40.0,
	})

	// Simulate a daemon death: the running row is still there on restart.
	data := runAction(t, st, reg, "recover_orphaned_jobs", nil)
	if data["count"] != 1 {
		t.Fatalf("expected one recovered job, got %#v", data)
	}
	recovered := mustJob(t, st, first)
	if recovered.Status != store.StatusPending {
		t.Fatalf("expected recovered job pending, got %s", recovered.Status)
	}
	if recovered.StartedAt != nil || recovered.CurrentStep != 0 || recovered.StepName != "" || recovered.ProgressPercentage != 0 {
		t.Fatalf("expected progress reset, got %+v", recovered)
	}
	if recovered.ErrorMessage != store.InterruptedJobMessage {
		t.Fatalf("expected requeue note, got %q", recovered.ErrorMessage)
	}
	if run := mustRun(t, st); run.QueuedJobs != 2 || run.RunningJobs != 0 {
		t.Fatalf("expected counters to follow the requeue, got %+v", run)
	}

	// The recovered job kept its creation time, so it is claimed before the
	// younger one, and the claim wipes the requeue note.
	data = runAction(t, st, reg, "dequeue_job", nil)
	if data["job_id"] != first {
		t.Fatalf("expected recovered job %s claimed first, got %#v", first, data)
	}
	if msg := mustJob(t, st, first).ErrorMessage; msg != "" {
		t.Fatalf("expected claim to clear the requeue note, got %q", msg)
	}
	if mustJob(t, st, second).Status != store.StatusPending {
		t.Fatal("expected younger job still pending")
	}

	data = runAction(t, st, reg, "recover_orphaned_jobs", nil)
	if data["count"] != 1 {
		t.Fatalf("recovery should requeue the newly running job, got %#v", data)
	}
}

func TestClearAllJobs(t *testing.T) {
	st, reg := newExecutor(t)
	ctx := context.Background()

	runAction(t, st, reg, "ensure_active_run", map[string]any{"trigger": "test"})
	createJob(t, st, reg, "post-a")
	createJob(t, st, reg, "post-b")

	data := runAction(t, st, reg, "clear_all_jobs", nil)
	if data["count"] != 2 {
		t.Fatalf("expected two deletions, got %#v", data)
	}
	counts, err := st.JobCounts(ctx)
	if err != nil {
		t.Fatalf("JobCounts failed: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected no jobs left, got %#v", counts)
	}
	if run := mustRun(t, st); run.TotalJobs != 0 {
		t.Fatalf("expected counters cleared, got %+v", run)
	}
}

func TestClearPostProcessingData(t *testing.T) {
	st, reg := newExecutor(t)
	ctx := context.Background()

	err := st.WithWriteTx(ctx, func(ctx context.Context, tx *store.WriteTx) error {
		now := time.Now().UTC()
		return tx.InsertPost(ctx, &store.Post{
			GUID:               "post-a",
			Title:              "Episode",
			ProcessedAudioPath: "/library/post-a.mp3",
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	})
	if err != nil {
		t.Fatalf("seed post failed: %v", err)
	}
	createJob(t, st, reg, "post-a")
	done := createJob(t, st, reg, "post-a")
	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": done, "status": "completed"})

	data := runAction(t, st, reg, "clear_post_processing_data", map[string]any{"post_guid": "post-a"})
	if data["count"] != 2 {
		t.Fatalf("expected both job rows removed, got %#v", data)
	}
	post, err := st.PostByGUID(ctx, "post-a")
	if err != nil {
		t.Fatalf("PostByGUID failed: %v", err)
	}
	if post.ProcessedAudioPath != "" {
		t.Fatalf("expected processed path cleared, got %q", post.ProcessedAudioPath)
	}
	jobs, err := st.ListJobs(ctx, 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected job history gone, got %d rows", len(jobs))
	}

	_, err = execAction(st, reg, "clear_post_processing_data", map[string]any{"post_guid": "ghost"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for unknown post, got %v", err)
	}
}

func TestCompleteJobAndPublish(t *testing.T) {
	st, reg := newExecutor(t)
	ctx := context.Background()

	err := st.WithWriteTx(ctx, func(ctx context.Context, tx *store.WriteTx) error {
		now := time.Now().UTC()
		return tx.InsertPost(ctx, &store.Post{GUID: "post-a", CreatedAt: now, UpdatedAt: now})
	})
	if err != nil {
		t.Fatalf("seed post failed: %v", err)
	}
	id := createJob(t, st, reg, "post-a")
	runAction(t, st, reg, "dequeue_job", nil)

	runAction(t, st, reg, "complete_job_and_publish", map[string]any{
		"job_id":      id,
		"post_guid":   "post-a",
		"output_path": "/library/post-a.mp3",
	})

	job := mustJob(t, st, id)
	if job.Status != store.StatusCompleted || job.ProgressPercentage != 100 || job.CurrentStep != job.TotalSteps {
		t.Fatalf("expected completed job at 100%%, got %+v", job)
	}
	post, err := st.PostByGUID(ctx, "post-a")
	if err != nil {
		t.Fatalf("PostByGUID failed: %v", err)
	}
	if post.ProcessedAudioPath != "/library/post-a.mp3" {
		t.Fatalf("expected publish pointer set, got %q", post.ProcessedAudioPath)
	}
}

func TestCompleteJobAndPublishRefusesCancelledJob(t *testing.T) {
	st, reg := newExecutor(t)
	ctx := context.Background()

	err := st.WithWriteTx(ctx, func(ctx context.Context, tx *store.WriteTx) error {
		now := time.Now().UTC()
		return tx.InsertPost(ctx, &store.Post{GUID: "post-a", CreatedAt: now, UpdatedAt: now})
	})
	if err != nil {
		t.Fatalf("seed post failed: %v", err)
	}
	id := createJob(t, st, reg, "post-a")
	runAction(t, st, reg, "mark_cancelled", map[string]any{"job_id": id})

	_, err = execAction(st, reg, "complete_job_and_publish", map[string]any{
		"job_id":      id,
		"post_guid":   "post-a",
		"output_path": "/library/post-a.mp3",
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected refusal for cancelled job, got %v", err)
	}
	post, err := st.PostByGUID(ctx, "post-a")
	if err != nil {
		t.Fatalf("PostByGUID failed: %v", err)
	}
	if post.ProcessedAudioPath != "" {
		t.Fatalf("expected publish rolled back, got %q", post.ProcessedAudioPath)
	}
	if mustJob(t, st, id).Status != store.StatusCancelled {
		t.Fatal("expected job to stay cancelled")
	}
}

func TestEnsureActiveRunResetsCountersWhenIdle(t *testing.T) {
	st, reg := newExecutor(t)

	data := runAction(t, st, reg, "ensure_active_run", map[string]any{"trigger": "startup"})
	if data["run_id"] != store.RunID {
		t.Fatalf("expected singleton run id, got %#v", data)
	}

	id := createJob(t, st, reg, "post-a")
	runAction(t, st, reg, "ensure_active_run", map[string]any{"trigger": "poll"})
	run := mustRun(t, st)
	if run.Trigger != "startup" || run.QueuedJobs != 1 {
		t.Fatalf("expected live run untouched, got %+v", run)
	}

	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": id, "status": "completed"})
	if mustRun(t, st).CompletedJobs != 1 {
		t.Fatal("expected completion counted")
	}

	// No pending or running jobs remain, so the next ensure starts a fresh
	// epoch with zeroed counters.
	runAction(t, st, reg, "ensure_active_run", map[string]any{"trigger": "manual"})
	run = mustRun(t, st)
	if run.Trigger != "manual" || run.TotalJobs != 0 || run.CompletedJobs != 0 {
		t.Fatalf("expected counters reset for new epoch, got %+v", run)
	}

	// Jobs finished before the reset stay invisible to the recalculated
	// counters.
	counts := runAction(t, st, reg, "recalculate_run_counts", nil)
	if counts["total_jobs"] != 0 {
		t.Fatalf("expected old jobs excluded after reset, got %#v", counts)
	}
}

func TestRecalculateRunCountsBucketsCancelledAsFailed(t *testing.T) {
	st, reg := newExecutor(t)

	runAction(t, st, reg, "ensure_active_run", map[string]any{"trigger": "test"})
	createJob(t, st, reg, "post-a")
	runningID := createJob(t, st, reg, "post-b")
	completedID := createJob(t, st, reg, "post-c")
	failedID := createJob(t, st, reg, "post-d")
	cancelledID := createJob(t, st, reg, "post-e")
	skippedID := createJob(t, st, reg, "post-f")

	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": runningID, "status": "running"})
	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": completedID, "status": "completed"})
	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": failedID, "status": "failed"})
	runAction(t, st, reg, "mark_cancelled", map[string]any{"job_id": cancelledID})
	runAction(t, st, reg, "update_job_status", map[string]any{"job_id": skippedID, "status": "skipped"})

	counts := runAction(t, st, reg, "recalculate_run_counts", nil)
	if counts["queued_jobs"] != 1 || counts["running_jobs"] != 1 || counts["completed_jobs"] != 1 || counts["skipped_jobs"] != 1 {
		t.Fatalf("unexpected counters: %#v", counts)
	}
	if counts["failed_jobs"] != 2 {
		t.Fatalf("expected cancelled bucketed with failed, got %#v", counts)
	}
	total := counts["total_jobs"].(int)
	sum := counts["queued_jobs"].(int) + counts["running_jobs"].(int) + counts["completed_jobs"].(int) +
		counts["failed_jobs"].(int) + counts["skipped_jobs"].(int)
	if total != 6 || total != sum {
		t.Fatalf("expected total %d to equal bucket sum %d", total, sum)
	}
}

func TestReassignPendingJobsAdoptsOrphans(t *testing.T) {
	st, reg := newExecutor(t)

	// Jobs created before any run exists carry no run id.
	orphanA := createJob(t, st, reg, "post-a")
	orphanB := createJob(t, st, reg, "post-b")
	runAction(t, st, reg, "ensure_active_run", map[string]any{"trigger": "startup"})

	data := runAction(t, st, reg, "reassign_pending_jobs", nil)
	if data["count"] != 2 {
		t.Fatalf("expected two adoptions, got %#v", data)
	}
	for _, id := range []string{orphanA, orphanB} {
		if mustJob(t, st, id).RunID != store.RunID {
			t.Fatalf("expected %s attached to run", id)
		}
	}
	run := mustRun(t, st)
	if run.QueuedJobs != 2 || run.TotalJobs != 2 {
		t.Fatalf("expected counters to follow adoption, got %+v", run)
	}
}
