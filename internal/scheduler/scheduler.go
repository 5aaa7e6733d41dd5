package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"podscrub/internal/command"
	"podscrub/internal/config"
	"podscrub/internal/logging"
	"podscrub/internal/processor"
	"podscrub/internal/services"
	"podscrub/internal/store"
)

// Scheduler owns the background worker that turns pending jobs into
// processing runs. All claims and status transitions travel through the
// command client, so they serialize with every other mutation; reads go
// straight to the store.
type Scheduler struct {
	cfg          *config.Config
	st           *store.Store
	client       *command.Client
	proc         processor.Processor
	logger       *slog.Logger
	pollInterval time.Duration

	// wake coalesces nudges from producers; one buffered slot is enough
	// because the worker drains it before every dequeue attempt.
	wake chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error

	// execMu guards job execution beyond the single worker goroutine, so an
	// accidental second worker could still not run two jobs at once.
	execMu sync.Mutex
}

// New constructs a scheduler. The client must route to the same store the
// scheduler reads from.
func New(cfg *config.Config, st *store.Store, client *command.Client, proc processor.Processor, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := time.Duration(cfg.Scheduler.PollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Scheduler{
		cfg:          cfg,
		st:           st,
		client:       client,
		proc:         proc,
		logger:       logging.NewComponentLogger(logger, "scheduler"),
		pollInterval: poll,
		wake:         make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runWorker(runCtx)
	return nil
}

// Stop terminates the worker and waits for the in-flight job to observe the
// cancellation. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Running reports whether the worker goroutine is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastError returns the most recent worker-loop error, if any.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Wake nudges the worker without blocking; concurrent nudges coalesce.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) runWorker(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Info("worker started")
	defer s.logger.Info("worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := s.dequeueNextJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setLastError(err)
			s.logger.Error("dequeue failed", logging.Error(err))
			s.waitForRetry(ctx)
			continue
		}
		if job == nil {
			s.waitForWork(ctx)
			continue
		}

		if err := s.executeJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.setLastError(err)
		}
	}
}

// dequeueNextJob claims the oldest pending job through the writer. A nil
// job with nil error means there is nothing to claim right now, either
// because no job is pending or because one is already running.
func (s *Scheduler) dequeueNextJob(ctx context.Context) (*store.ProcessingJob, error) {
	res, err := s.client.Action(ctx, "dequeue_job", map[string]any{"run_id": store.RunID})
	if err != nil {
		return nil, err
	}
	if resErr := res.Err(); resErr != nil {
		return nil, resErr
	}
	jobID, _ := res.Data["job_id"].(string)
	if jobID == "" {
		return nil, nil
	}
	job, err := s.st.JobByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load claimed job %s: %w", jobID, err)
	}
	if job == nil {
		return nil, fmt.Errorf("claimed job %s not found", jobID)
	}
	return job, nil
}

// executeJob runs one claimed job to a terminal status. Only a shutdown
// (context cancellation) propagates an error; job failures are persisted and
// swallowed so the loop moves on.
func (s *Scheduler) executeJob(ctx context.Context, job *store.ProcessingJob) error {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	logger := s.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldPostGUID, job.PostGUID))

	post, err := s.st.PostByGUID(ctx, job.PostGUID)
	if err != nil {
		s.markFailed(ctx, logger, job.ID, fmt.Sprintf("load post: %v", err))
		return nil
	}
	if post == nil {
		s.markFailed(ctx, logger, job.ID, fmt.Sprintf("post %q not found", job.PostGUID))
		return nil
	}
	if post.Processed() {
		s.markSkipped(ctx, logger, job.ID)
		return nil
	}

	start := time.Now()
	logger.Info("job started")

	out, procErr := s.proc.Process(ctx, job, post, s.cancelCheck(job.ID), s.progressFunc(ctx, job.ID))
	switch {
	case procErr == nil:
		s.finishCompleted(ctx, logger, job, post, out, start)
		return nil
	case errors.Is(procErr, context.Canceled), errors.Is(procErr, context.DeadlineExceeded):
		// Shutdown. The claim must not survive as a running row, and the
		// worker context is dead, so the cancel travels on a fresh one. The
		// writer outlives the scheduler in the daemon's stop order.
		s.markShutdownCancelled(logger, job.ID)
		return procErr
	case errors.Is(procErr, processor.ErrCancelled):
		// The row is already terminally cancelled; the pipeline just
		// confirmed it noticed.
		logger.Info("job cancelled", logging.Duration("elapsed", time.Since(start)))
		return nil
	default:
		logger.Error("job failed",
			logging.Error(procErr),
			logging.Duration("elapsed", time.Since(start)))
		s.markFailed(ctx, logger, job.ID, procErr.Error())
		return nil
	}
}

func (s *Scheduler) finishCompleted(ctx context.Context, logger *slog.Logger, job *store.ProcessingJob, post *store.Post, out processor.Output, start time.Time) {
	res, err := s.client.Action(ctx, "complete_job_and_publish", map[string]any{
		"job_id":      job.ID,
		"post_guid":   post.GUID,
		"output_path": out.ProcessedPath,
	})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		// A cancel that lands between the last checkpoint and here makes the
		// completion refuse; the job stays cancelled, which is the contract.
		if current, readErr := s.st.JobByID(ctx, job.ID); readErr == nil && current != nil && current.Status == store.StatusCancelled {
			logger.Info("job cancelled during completion")
			return
		}
		logger.Error("failed to persist completion", logging.Error(err))
		// The row must still reach a terminal state: a job left running
		// blocks every future dequeue for the daemon's lifetime.
		s.markFailed(ctx, logger, job.ID, fmt.Sprintf("persist completion: %v", err))
		return
	}
	logger.Info("job completed",
		logging.String("output", out.ProcessedPath),
		logging.Int("ad_segments", len(out.Segments)),
		logging.Duration("elapsed", time.Since(start)))
}

func (s *Scheduler) markFailed(ctx context.Context, logger *slog.Logger, jobID, message string) {
	res, err := s.client.Action(ctx, "update_job_status", map[string]any{
		"job_id":        jobID,
		"status":        string(store.StatusFailed),
		"error_message": message,
	})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		if current, readErr := s.st.JobByID(ctx, jobID); readErr == nil && current != nil && current.Status == store.StatusCancelled {
			logger.Info("job cancelled before failure could be recorded")
			return
		}
		logger.Error("failed to persist job failure", logging.Error(err))
	}
}

func (s *Scheduler) markSkipped(ctx context.Context, logger *slog.Logger, jobID string) {
	res, err := s.client.Action(ctx, "update_job_status", map[string]any{
		"job_id":   jobID,
		"status":   string(store.StatusSkipped),
		"progress": float64(100),
	})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		logger.Error("failed to mark job skipped", logging.Error(err))
		return
	}
	logger.Info("post already processed; job skipped")
}

func (s *Scheduler) markShutdownCancelled(logger *slog.Logger, jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), command.DefaultTimeout)
	defer cancel()
	res, err := s.client.Action(ctx, "mark_cancelled", map[string]any{
		"job_id": jobID,
		"reason": store.ShutdownCancelReason,
	})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		logger.Error("failed to cancel job at shutdown", logging.Error(err))
		return
	}
	logger.Info("job cancelled by shutdown")
}

// cancelCheck builds the closure the pipeline polls at stage boundaries. It
// re-reads the row each time because cancellation arrives from other
// producers through the writer.
func (s *Scheduler) cancelCheck(jobID string) func() bool {
	return func() bool {
		job, err := s.st.JobByID(context.Background(), jobID)
		if err != nil || job == nil {
			return false
		}
		return job.Status == store.StatusCancelled
	}
}

// progressFunc turns pipeline progress callbacks into async status updates.
// Drops are tolerable: progress is advisory and the terminal transition does
// not travel this path.
func (s *Scheduler) progressFunc(ctx context.Context, jobID string) processor.ProgressFunc {
	return func(step, total int, name string, percent float64) {
		err := s.client.ActionAsync(ctx, "update_job_status", map[string]any{
			"job_id":      jobID,
			"status":      string(store.StatusRunning),
			"step":        step,
			"total_steps": total,
			"step_name":   name,
			"progress":    percent,
		})
		if err != nil {
			s.logger.Debug("progress update dropped",
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err))
		}
	}
}

func (s *Scheduler) waitForWork(ctx context.Context) {
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-s.wake:
	case <-timer.C:
	}
}

func (s *Scheduler) waitForRetry(ctx context.Context) {
	retry := time.Duration(s.cfg.Scheduler.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(retry):
	}
}

// StartPostProcessing queues a post for processing. When the post already
// has an active job, that job is returned unchanged; otherwise any stragglers
// are superseded and a fresh pending job created in one atomic batch.
func (s *Scheduler) StartPostProcessing(ctx context.Context, postGUID string) (*store.ProcessingJob, error) {
	guid := strings.TrimSpace(postGUID)
	if guid == "" {
		return nil, services.Wrap(services.ErrValidation, "scheduler", "start post processing", "post guid required", nil)
	}
	post, err := s.st.PostByGUID(ctx, guid)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, services.Wrap(services.ErrNotFound, "scheduler", "start post processing",
			fmt.Sprintf("post %q not found", guid), nil)
	}

	if existing, err := s.st.ActiveJobForPost(ctx, guid); err != nil {
		return nil, err
	} else if existing != nil {
		s.logger.Debug("post already queued",
			logging.String(logging.FieldPostGUID, guid),
			logging.String(logging.FieldJobID, existing.ID))
		return existing, nil
	}

	// The precheck above is advisory; racing requests settle inside this
	// transaction, where the newcomer supersedes whatever slipped in.
	jobID := uuid.NewString()
	res, err := s.client.Transaction(ctx,
		command.WriteCommand{Type: command.TypeAction, Data: map[string]any{
			"action":         "cancel_existing_jobs",
			"post_guid":      guid,
			"current_job_id": jobID,
		}},
		command.WriteCommand{Type: command.TypeAction, Data: map[string]any{
			"action":   "create_job",
			"job_data": map[string]any{"id": jobID, "post_guid": guid},
		}},
	)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("queue post %s: %w", guid, err)
	}

	s.Wake()
	job, err := s.st.JobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s missing after creation", jobID)
	}
	s.logger.Info("post queued for processing",
		logging.String(logging.FieldPostGUID, guid),
		logging.String(logging.FieldJobID, job.ID))
	return job, nil
}

// EnqueuePendingJobs sweeps for eligible posts and gives each one a pending
// job. Returns the number of jobs created.
func (s *Scheduler) EnqueuePendingJobs(ctx context.Context, trigger, cause string) (int, error) {
	res, err := s.client.Action(ctx, "ensure_active_run", map[string]any{
		"trigger": trigger,
		"context": cause,
	})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return 0, fmt.Errorf("ensure active run: %w", err)
	}

	res, err = s.client.Action(ctx, "reassign_pending_jobs", map[string]any{"run_id": store.RunID})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return 0, fmt.Errorf("reassign pending jobs: %w", err)
	}
	reassigned := dataInt(res.Data, "count")

	posts, err := s.st.ListEligiblePosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list eligible posts: %w", err)
	}
	created := 0
	for _, post := range posts {
		res, err := s.client.Action(ctx, "create_job", map[string]any{
			"job_data": map[string]any{"post_guid": post.GUID},
		})
		if err != nil {
			return created, fmt.Errorf("enqueue post %s: %w", post.GUID, err)
		}
		if resErr := res.Err(); resErr != nil {
			s.logger.Warn("skipping post that failed to enqueue",
				logging.String(logging.FieldPostGUID, post.GUID),
				logging.Error(resErr))
			continue
		}
		created++
	}

	res, err = s.client.Action(ctx, "recalculate_run_counts", nil)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		s.logger.Warn("run counter refresh failed", logging.Error(err))
	}

	if created > 0 || reassigned > 0 {
		s.Wake()
	}
	s.logger.Info("enqueue sweep finished",
		logging.String("trigger", trigger),
		logging.Int("created", created),
		logging.Int("reassigned", reassigned))
	return created, nil
}

// CancelJob marks one job cancelled. Terminal jobs are left untouched; the
// returned row reflects the final state either way.
func (s *Scheduler) CancelJob(ctx context.Context, jobID, reason string) (*store.ProcessingJob, error) {
	params := map[string]any{"job_id": jobID}
	if strings.TrimSpace(reason) != "" {
		params["reason"] = reason
	}
	res, err := s.client.Action(ctx, "mark_cancelled", params)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return nil, err
	}
	return s.st.JobByID(ctx, jobID)
}

// CancelPostJobs cancels every active job for a post and returns how many
// rows changed.
func (s *Scheduler) CancelPostJobs(ctx context.Context, postGUID string) (int, error) {
	res, err := s.client.Action(ctx, "cancel_existing_jobs", map[string]any{"post_guid": postGUID})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return 0, err
	}
	return dataInt(res.Data, "count"), nil
}

// CleanupStuckPending fails pending jobs older than the threshold. A zero
// threshold falls back to the configured stale window.
func (s *Scheduler) CleanupStuckPending(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = time.Duration(s.cfg.Scheduler.StaleJobSeconds) * time.Second
	}
	res, err := s.client.Action(ctx, "cleanup_stale_jobs", map[string]any{
		"older_than_seconds": int(olderThan / time.Second),
	})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return 0, err
	}
	count := dataInt(res.Data, "count")
	if count > 0 {
		s.logger.Info("stale pending jobs failed", logging.Int("count", count))
	}
	return count, nil
}

// RecoverOrphanedJobs requeues jobs a dead daemon left in running. Nothing
// dequeues while a running row exists, so orphans would block the queue
// until recovered.
func (s *Scheduler) RecoverOrphanedJobs(ctx context.Context) (int, error) {
	res, err := s.client.Action(ctx, "recover_orphaned_jobs", nil)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return 0, err
	}
	count := dataInt(res.Data, "count")
	if count > 0 {
		s.logger.Info("requeued interrupted jobs", logging.Int("count", count))
	}
	return count, nil
}

// ClearAllJobs wipes the job table. Posts and their processed audio are
// untouched.
func (s *Scheduler) ClearAllJobs(ctx context.Context) (int, error) {
	res, err := s.client.Action(ctx, "clear_all_jobs", nil)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return 0, err
	}
	return dataInt(res.Data, "count"), nil
}

// GetPostStatus reports a post together with its most recent job, either of
// which may be nil-free depending on history.
func (s *Scheduler) GetPostStatus(ctx context.Context, postGUID string) (*store.Post, *store.ProcessingJob, error) {
	post, err := s.st.PostByGUID(ctx, postGUID)
	if err != nil {
		return nil, nil, err
	}
	if post == nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "scheduler", "post status",
			fmt.Sprintf("post %q not found", postGUID), nil)
	}
	job, err := s.st.LatestJobForPost(ctx, postGUID)
	if err != nil {
		return nil, nil, err
	}
	return post, job, nil
}

// ListActiveJobs returns pending and running jobs, oldest first.
func (s *Scheduler) ListActiveJobs(ctx context.Context) ([]*store.ProcessingJob, error) {
	return s.st.ListJobs(ctx, 0, store.ActiveJobStatuses...)
}

func dataInt(data map[string]any, key string) int {
	if data == nil {
		return 0
	}
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
