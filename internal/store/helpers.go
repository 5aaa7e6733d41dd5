package store

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, post_guid, status, current_step, step_name, total_steps, progress_percentage, error_message, requested_by_user_id, billing_user_id, jobs_manager_run_id, created_at, started_at, completed_at"

const runColumns = "id, status, triggered_by, started_at, completed_at, counters_reset_at, total_jobs, queued_jobs, running_jobs, completed_jobs, failed_jobs, skipped_jobs"

const postColumns = "guid, feed_id, title, audio_url, processed_audio_path, published_at, created_at, updated_at"

const feedColumns = "id, url, title, last_checked_at, created_at, updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanJob(scanner rowScanner) (*ProcessingJob, error) {
	var (
		id           string
		postGUID     string
		statusStr    string
		currentStep  int
		stepName     sql.NullString
		totalSteps   int
		progress     float64
		errorMessage sql.NullString
		requestedBy  sql.NullString
		billingUser  sql.NullString
		runID        sql.NullInt64
		createdRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&postGUID,
		&statusStr,
		&currentStep,
		&stepName,
		&totalSteps,
		&progress,
		&errorMessage,
		&requestedBy,
		&billingUser,
		&runID,
		&createdRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &ProcessingJob{
		ID:                 id,
		PostGUID:           postGUID,
		Status:             JobStatus(statusStr),
		CurrentStep:        currentStep,
		StepName:           stepName.String,
		TotalSteps:         totalSteps,
		ProgressPercentage: progress,
		ErrorMessage:       errorMessage.String,
		RequestedByUserID:  requestedBy.String,
		BillingUserID:      billingUser.String,
	}
	if runID.Valid {
		job.RunID = runID.Int64
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func scanRun(scanner rowScanner) (*Run, error) {
	var (
		id           int64
		status       string
		trigger      sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		resetRaw     sql.NullString
		total        int
		queued       int
		running      int
		completed    int
		failed       int
		skipped      int
	)

	if err := scanner.Scan(
		&id,
		&status,
		&trigger,
		&startedRaw,
		&completedRaw,
		&resetRaw,
		&total,
		&queued,
		&running,
		&completed,
		&failed,
		&skipped,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:            id,
		Status:        status,
		Trigger:       trigger.String,
		TotalJobs:     total,
		QueuedJobs:    queued,
		RunningJobs:   running,
		CompletedJobs: completed,
		FailedJobs:    failed,
		SkippedJobs:   skipped,
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			run.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if done, err := parseTimeString(completedRaw.String); err == nil {
			run.CompletedAt = &done
		}
	}
	if resetRaw.Valid {
		if reset, err := parseTimeString(resetRaw.String); err == nil {
			run.CountersResetAt = &reset
		}
	}
	return run, nil
}

func scanPost(scanner rowScanner) (*Post, error) {
	var (
		guid          string
		feedID        sql.NullInt64
		title         sql.NullString
		audioURL      sql.NullString
		processedPath sql.NullString
		publishedRaw  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&guid,
		&feedID,
		&title,
		&audioURL,
		&processedPath,
		&publishedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	post := &Post{
		GUID:               guid,
		Title:              title.String,
		AudioURL:           audioURL.String,
		ProcessedAudioPath: processedPath.String,
	}
	if feedID.Valid {
		post.FeedID = feedID.Int64
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			post.PublishedAt = &published
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		post.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		post.UpdatedAt = updated
	}
	return post, nil
}

func scanFeed(scanner rowScanner) (*Feed, error) {
	var (
		id         int64
		url        string
		title      sql.NullString
		checkedRaw sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)

	if err := scanner.Scan(&id, &url, &title, &checkedRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	feed := &Feed{ID: id, URL: url, Title: title.String}
	if checkedRaw.Valid {
		if checked, err := parseTimeString(checkedRaw.String); err == nil {
			feed.LastCheckedAt = &checked
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		feed.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		feed.UpdatedAt = updated
	}
	return feed, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout pads fractional seconds to nine digits so the stored TEXT
// compares chronologically. RFC3339Nano trims trailing zeros, which breaks
// ORDER BY and cutoff comparisons on the raw column.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeLayout)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
