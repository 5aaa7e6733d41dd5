package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// JobByID fetches a processing job by identifier. Returns (nil, nil) when no
// row matches.
func (s *Store) JobByID(ctx context.Context, id string) (*ProcessingJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM processing_job WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// RunningJob returns the job currently marked running, or nil when idle.
func (s *Store) RunningJob(ctx context.Context) (*ProcessingJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM processing_job WHERE status = ? LIMIT 1`, StatusRunning)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get running job: %w", err)
	}
	return job, nil
}

// OldestPending returns the pending job that has waited longest, or nil.
func (s *Store) OldestPending(ctx context.Context) (*ProcessingJob, error) {
	row := s.db.QueryRowContext(ctx,
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

// ActiveJobForPost returns the pending or running job for a post, or nil.
func (s *Store) ActiveJobForPost(ctx context.Context, postGUID string) (*ProcessingJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM processing_job WHERE post_guid = ? AND status IN (?, ?) ORDER BY created_at LIMIT 1`,
		postGUID, StatusPending, StatusRunning)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active job for post: %w", err)
	}
	return job, nil
}

// LatestJobForPost returns the most recently created job for a post, or nil.
func (s *Store) LatestJobForPost(ctx context.Context, postGUID string) (*ProcessingJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM processing_job WHERE post_guid = ? ORDER BY created_at DESC LIMIT 1`, postGUID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest job for post: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs oldest-first, optionally filtered by status. A
// non-positive limit returns everything.
func (s *Store) ListJobs(ctx context.Context, limit int, statuses ...JobStatus) ([]*ProcessingJob, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM processing_job`
	orderClause := ` ORDER BY created_at`
	limitClause := ""
	if limit > 0 {
		limitClause = fmt.Sprintf(" LIMIT %d", limit)
	}

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause+limitClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause + limitClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
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

// JobCounts aggregates job rows per status.
func (s *Store) JobCounts(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM processing_job GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
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

// Run returns the singleton run row, or nil when it has not been created yet.
func (s *Store) Run(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM jobs_manager_run WHERE id = ?`, RunID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// PostByGUID fetches a post, or nil when absent.
func (s *Store) PostByGUID(ctx context.Context, guid string) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM post WHERE guid = ?`, guid)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// ListPosts returns posts newest-first. A non-positive limit returns everything.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]*Post, error) {
	query := `SELECT ` + postColumns + ` FROM post ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ListEligiblePosts returns posts with no processed audio and no active job,
// oldest-first. These are the enqueue candidates.
func (s *Store) ListEligiblePosts(ctx context.Context) ([]*Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM post
         WHERE (processed_audio_path IS NULL OR processed_audio_path = '')
           AND guid NOT IN (SELECT post_guid FROM processing_job WHERE status IN (?, ?))
         ORDER BY created_at`,
		StatusPending, StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list eligible posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ListFeeds returns all feeds ordered by id.
func (s *Store) ListFeeds(ctx context.Context) ([]*Feed, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feed ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

// FeedByURL fetches a feed by its unique URL, or nil when absent.
func (s *Store) FeedByURL(ctx context.Context, url string) (*Feed, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feed WHERE url = ?`, url)
	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return feed, nil
}

// GetSetting returns a setting value and whether the key exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM setting WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return value.String, true, nil
}

// ListSettings returns all settings ordered by key.
func (s *Store) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM setting ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var (
			key        string
			value      sql.NullString
			updatedRaw sql.NullString
		)
		if err := rows.Scan(&key, &value, &updatedRaw); err != nil {
			return nil, err
		}
		setting := Setting{Key: key, Value: value.String}
		if updated, err := parseTimeString(updatedRaw.String); err == nil {
			setting.UpdatedAt = updated
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}
