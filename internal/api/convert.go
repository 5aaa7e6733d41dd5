package api

import (
	"time"

	"podscrub/internal/deps"
	"podscrub/internal/ratelimit"
	"podscrub/internal/store"
)

// FromJob converts a job record to its API representation.
func FromJob(job *store.ProcessingJob) JobView {
	if job == nil {
		return JobView{}
	}

	dto := JobView{
		ID:       job.ID,
		PostGUID: job.PostGUID,
		Status:   string(job.Status),
		Progress: JobProgress{
			Step:    job.CurrentStep,
			Total:   job.TotalSteps,
			Name:    job.StepName,
			Percent: job.ProgressPercentage,
		},
		ErrorMessage: job.ErrorMessage,
		RequestedBy:  job.RequestedByUserID,
		BillingUser:  job.BillingUserID,
		RunID:        job.RunID,
		CreatedAt:    FormatTime(job.CreatedAt),
		StartedAt:    FormatTimePtr(job.StartedAt),
		CompletedAt:  FormatTimePtr(job.CompletedAt),
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(jobs []*store.ProcessingJob) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromPost converts a post record to its API representation.
func FromPost(post *store.Post) PostView {
	if post == nil {
		return PostView{}
	}
	return PostView{
		GUID:               post.GUID,
		FeedID:             post.FeedID,
		Title:              post.Title,
		AudioURL:           post.AudioURL,
		ProcessedAudioPath: post.ProcessedAudioPath,
		Processed:          post.Processed(),
		PublishedAt:        FormatTimePtr(post.PublishedAt),
		CreatedAt:          FormatTime(post.CreatedAt),
		UpdatedAt:          FormatTime(post.UpdatedAt),
	}
}

// FromPosts converts a slice of post records into API DTOs.
func FromPosts(posts []*store.Post) []PostView {
	if len(posts) == 0 {
		return nil
	}
	out := make([]PostView, 0, len(posts))
	for _, post := range posts {
		out = append(out, FromPost(post))
	}
	return out
}

// FromFeed converts a feed record to its API representation.
func FromFeed(feed *store.Feed) FeedView {
	if feed == nil {
		return FeedView{}
	}
	return FeedView{
		ID:            feed.ID,
		URL:           feed.URL,
		Title:         feed.Title,
		LastCheckedAt: FormatTimePtr(feed.LastCheckedAt),
		CreatedAt:     FormatTime(feed.CreatedAt),
	}
}

// FromFeeds converts a slice of feed records into API DTOs.
func FromFeeds(feeds []*store.Feed) []FeedView {
	if len(feeds) == 0 {
		return nil
	}
	out := make([]FeedView, 0, len(feeds))
	for _, feed := range feeds {
		out = append(out, FromFeed(feed))
	}
	return out
}

// FromSetting converts a setting record to its API representation.
func FromSetting(setting store.Setting) SettingView {
	return SettingView{
		Key:       setting.Key,
		Value:     setting.Value,
		UpdatedAt: FormatTime(setting.UpdatedAt),
	}
}

// FromSettings converts a slice of setting records into API DTOs.
func FromSettings(settings []store.Setting) []SettingView {
	if len(settings) == 0 {
		return nil
	}
	out := make([]SettingView, 0, len(settings))
	for _, setting := range settings {
		out = append(out, FromSetting(setting))
	}
	return out
}

// FromRun converts the run row to its API representation.
func FromRun(run *store.Run) *RunView {
	if run == nil {
		return nil
	}
	return &RunView{
		ID:          run.ID,
		Status:      run.Status,
		Trigger:     run.Trigger,
		StartedAt:   FormatTimePtr(run.StartedAt),
		CompletedAt: FormatTimePtr(run.CompletedAt),
		Counts: map[string]int{
			"total":     run.TotalJobs,
			"queued":    run.QueuedJobs,
			"running":   run.RunningJobs,
			"completed": run.CompletedJobs,
			"failed":    run.FailedJobs,
			"skipped":   run.SkippedJobs,
		},
	}
}

// FromRateStats converts token bucket stats to their API representation.
func FromRateStats(stats ratelimit.Stats) RateStats {
	return RateStats{
		Used:          stats.Used,
		Limit:         stats.Limit,
		Percent:       stats.Percent,
		WindowSeconds: int(stats.Window / time.Second),
	}
}

// FromDependencyStatuses converts tool availability reports into API DTOs.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// MergeJobCounts produces a string-keyed representation of job counts.
func MergeJobCounts(counts map[store.JobStatus]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, count := range counts {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FormatTimePtr converts an optional time to RFC3339 or returns empty string.
func FormatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}
