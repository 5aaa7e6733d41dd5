package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Typed operations on an open write transaction. The actions layer composes
// these; nothing here commits or rolls back.

// InsertJob writes a new processing job row.
func (w *WriteTx) InsertJob(ctx context.Context, job *ProcessingJob) error {
	_, err := w.tx.ExecContext(ctx,
		`INSERT INTO processing_job (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.PostGUID,
		job.Status,
		job.CurrentStep,
		nullableString(job.StepName),
		job.TotalSteps,
		job.ProgressPercentage,
		nullableString(job.ErrorMessage),
		nullableString(job.RequestedByUserID),
		nullableString(job.BillingUserID),
		nullableRunID(job.RunID),
		formatTime(job.CreatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob rewrites every mutable column of a job row.
func (w *WriteTx) UpdateJob(ctx context.Context, job *ProcessingJob) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE processing_job SET
            post_guid = ?, status = ?, current_step = ?, step_name = ?,
            total_steps = ?, progress_percentage = ?, error_message = ?,
            requested_by_user_id = ?, billing_user_id = ?, jobs_manager_run_id = ?,
            started_at = ?, completed_at = ?
         WHERE id = ?`,
		job.PostGUID,
		job.Status,
		job.CurrentStep,
		nullableString(job.StepName),
		job.TotalSteps,
		job.ProgressPercentage,
		nullableString(job.ErrorMessage),
		nullableString(job.RequestedByUserID),
		nullableString(job.BillingUserID),
		nullableRunID(job.RunID),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update job: no row with id %s", job.ID)
	}
	return nil
}

// JobByID fetches a job inside the transaction. Returns (nil, nil) when absent.
func (w *WriteTx) JobByID(ctx context.Context, id string) (*ProcessingJob, error) {
	row := w.tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM processing_job WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// RunningJobCount counts currently running jobs inside the transaction.
func (w *WriteTx) RunningJobCount(ctx context.Context) (int, error) {
	var count int
	err := w.tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processing_job WHERE status = ?`, StatusRunning).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count running jobs: %w", err)
	}
	return count, nil
}

// ActiveJobCount counts pending and running jobs inside the transaction.
func (w *WriteTx) ActiveJobCount(ctx context.Context) (int, error) {
	var count int
	err := w.tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processing_job WHERE status IN (?, ?)`,
		StatusPending, StatusRunning).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// OldestPendingJob returns the longest-waiting pending job inside the
// transaction, or nil.
func (w *WriteTx) OldestPendingJob(ctx context.Context) (*ProcessingJob, error) {
	row := w.tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM processing_job WHERE status = ? ORDER BY created_at LIMIT 1`, StatusPending)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get oldest pending job: %w", err)
	}
	return job, nil
}

// JobsForPost returns a post's jobs, optionally filtered by status.
func (w *WriteTx) JobsForPost(ctx context.Context, postGUID string, statuses ...JobStatus) ([]*ProcessingJob, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM processing_job WHERE post_guid = ?`
	args := []any{postGUID}
	if len(statuses) > 0 {
		baseQuery += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	rows, err := w.tx.QueryContext(ctx, baseQuery+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs for post: %w", err)
	}
	defer rows.Close()

	var jobs []*ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// PendingJobsOlderThan returns pending jobs created before the cutoff.
func (w *WriteTx) PendingJobsOlderThan(ctx context.Context, cutoff time.Time) ([]*ProcessingJob, error) {
	rows, err := w.tx.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM processing_job WHERE status = ? AND created_at < ? ORDER BY created_at`,
		StatusPending, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list stale pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// RunningJobs returns every job currently marked running, oldest first.
func (w *WriteTx) RunningJobs(ctx context.Context) ([]*ProcessingJob, error) {
	rows, err := w.tx.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM processing_job WHERE status = ? ORDER BY created_at`, StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list running jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes one job row, reporting whether it existed.
func (w *WriteTx) DeleteJob(ctx context.Context, id string) (bool, error) {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM processing_job WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete job rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteAllJobs removes every job row and returns the count.
func (w *WriteTx) DeleteAllJobs(ctx context.Context) (int64, error) {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM processing_job`)
	if err != nil {
		return 0, fmt.Errorf("delete all jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all jobs rows affected: %w", err)
	}
	return affected, nil
}

// DeleteJobsForPost removes every job row for a post and returns the count.
func (w *WriteTx) DeleteJobsForPost(ctx context.Context, postGUID string) (int64, error) {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM processing_job WHERE post_guid = ?`, postGUID)
	if err != nil {
		return 0, fmt.Errorf("delete jobs for post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete jobs for post rows affected: %w", err)
	}
	return affected, nil
}

// JobIDsForPost lists a post's job ids oldest-first.
func (w *WriteTx) JobIDsForPost(ctx context.Context, postGUID string) ([]string, error) {
	rows, err := w.tx.QueryContext(ctx,
		`SELECT id FROM processing_job WHERE post_guid = ? ORDER BY created_at`, postGUID)
	if err != nil {
		return nil, fmt.Errorf("list job ids for post: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReassignPendingJobs points pending jobs with a missing or different run id
// at the given run. Returns how many rows moved.
func (w *WriteTx) ReassignPendingJobs(ctx context.Context, runID int64) (int64, error) {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE processing_job SET jobs_manager_run_id = ?
         WHERE status = ? AND (jobs_manager_run_id IS NULL OR jobs_manager_run_id != ?)`,
		runID, StatusPending, runID)
	if err != nil {
		return 0, fmt.Errorf("reassign pending jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign pending jobs rows affected: %w", err)
	}
	return affected, nil
}

// CountJobsByStatusSince aggregates a run's jobs per status, restricted to
// rows created at or after the cutoff when one is given.
func (w *WriteTx) CountJobsByStatusSince(ctx context.Context, runID int64, since *time.Time) (map[JobStatus]int, error) {
	query := `SELECT status, COUNT(1) FROM processing_job WHERE jobs_manager_run_id = ?`
	args := []any{runID}
	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(*since))
	}
	query += ` GROUP BY status`

	rows, err := w.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count run jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[JobStatus(status)] = count
	}
	return counts, rows.Err()
}

// Run fetches the singleton run row inside the transaction, or nil.
func (w *WriteTx) Run(ctx context.Context) (*Run, error) {
	row := w.tx.QueryRowContext(ctx, `SELECT `+runColumns+` FROM jobs_manager_run WHERE id = ?`, RunID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// InsertRun creates the singleton run row.
func (w *WriteTx) InsertRun(ctx context.Context, run *Run) error {
	_, err := w.tx.ExecContext(ctx,
		`INSERT INTO jobs_manager_run (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Status,
		nullableString(run.Trigger),
		nullableTime(run.StartedAt),
		nullableTime(run.CompletedAt),
		nullableTime(run.CountersResetAt),
		run.TotalJobs,
		run.QueuedJobs,
		run.RunningJobs,
		run.CompletedJobs,
		run.FailedJobs,
		run.SkippedJobs,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun rewrites the singleton run row.
func (w *WriteTx) UpdateRun(ctx context.Context, run *Run) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE jobs_manager_run SET
            status = ?, triggered_by = ?, started_at = ?, completed_at = ?,
            counters_reset_at = ?, total_jobs = ?, queued_jobs = ?, running_jobs = ?,
            completed_jobs = ?, failed_jobs = ?, skipped_jobs = ?
         WHERE id = ?`,
		run.Status,
		nullableString(run.Trigger),
		nullableTime(run.StartedAt),
		nullableTime(run.CompletedAt),
		nullableTime(run.CountersResetAt),
		run.TotalJobs,
		run.QueuedJobs,
		run.RunningJobs,
		run.CompletedJobs,
		run.FailedJobs,
		run.SkippedJobs,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update run: no row with id %d", run.ID)
	}
	return nil
}

// PostByGUID fetches a post inside the transaction, or nil.
func (w *WriteTx) PostByGUID(ctx context.Context, guid string) (*Post, error) {
	row := w.tx.QueryRowContext(ctx, `SELECT `+postColumns+` FROM post WHERE guid = ?`, guid)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// InsertPost writes a new post row.
func (w *WriteTx) InsertPost(ctx context.Context, post *Post) error {
	_, err := w.tx.ExecContext(ctx,
		`INSERT INTO post (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		post.GUID,
		nullableRunID(post.FeedID),
		nullableString(post.Title),
		nullableString(post.AudioURL),
		nullableString(post.ProcessedAudioPath),
		nullableTime(post.PublishedAt),
		formatTime(post.CreatedAt),
		formatTime(post.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// UpdatePost rewrites every mutable column of a post row.
func (w *WriteTx) UpdatePost(ctx context.Context, post *Post) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE post SET
            feed_id = ?, title = ?, audio_url = ?, processed_audio_path = ?,
            published_at = ?, updated_at = ?
         WHERE guid = ?`,
		nullableRunID(post.FeedID),
		nullableString(post.Title),
		nullableString(post.AudioURL),
		nullableString(post.ProcessedAudioPath),
		nullableTime(post.PublishedAt),
		formatTime(post.UpdatedAt),
		post.GUID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update post: no row with guid %s", post.GUID)
	}
	return nil
}

// DeletePost removes a post row, reporting whether it existed.
func (w *WriteTx) DeletePost(ctx context.Context, guid string) (bool, error) {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM post WHERE guid = ?`, guid)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetPostProcessedPath updates only the processed audio location.
func (w *WriteTx) SetPostProcessedPath(ctx context.Context, guid, path string) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE post SET processed_audio_path = ?, updated_at = ? WHERE guid = ?`,
		nullableString(path), formatTime(time.Now().UTC()), guid)
	if err != nil {
		return fmt.Errorf("set post processed path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set post processed path rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("set post processed path: no row with guid %s", guid)
	}
	return nil
}

// FeedByID fetches a feed inside the transaction, or nil.
func (w *WriteTx) FeedByID(ctx context.Context, id int64) (*Feed, error) {
	row := w.tx.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feed WHERE id = ?`, id)
	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return feed, nil
}

// InsertFeed writes a new feed row and returns its id.
func (w *WriteTx) InsertFeed(ctx context.Context, feed *Feed) (int64, error) {
	res, err := w.tx.ExecContext(ctx,
		`INSERT INTO feed (url, title, last_checked_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		feed.URL,
		nullableString(feed.Title),
		nullableTime(feed.LastCheckedAt),
		formatTime(feed.CreatedAt),
		formatTime(feed.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert feed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert feed id: %w", err)
	}
	return id, nil
}

// UpdateFeed rewrites every mutable column of a feed row.
func (w *WriteTx) UpdateFeed(ctx context.Context, feed *Feed) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE feed SET url = ?, title = ?, last_checked_at = ?, updated_at = ? WHERE id = ?`,
		feed.URL,
		nullableString(feed.Title),
		nullableTime(feed.LastCheckedAt),
		formatTime(feed.UpdatedAt),
		feed.ID,
	)
	if err != nil {
		return fmt.Errorf("update feed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update feed rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update feed: no row with id %d", feed.ID)
	}
	return nil
}

// DeleteFeed removes a feed row, reporting whether it existed.
func (w *WriteTx) DeleteFeed(ctx context.Context, id int64) (bool, error) {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM feed WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete feed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete feed rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpsertSetting inserts or replaces a key/value setting.
func (w *WriteTx) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := w.tx.ExecContext(ctx,
		`INSERT INTO setting (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// DeleteSetting removes a setting row, reporting whether it existed.
func (w *WriteTx) DeleteSetting(ctx context.Context, key string) (bool, error) {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM setting WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete setting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete setting rows affected: %w", err)
	}
	return affected > 0, nil
}

func nullableRunID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
