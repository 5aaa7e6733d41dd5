package store

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle of a processing job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
	StatusSkipped   JobStatus = "skipped"
)

// StaleJobMessage is the diagnostic recorded when cleanup fails a pending job
// that sat in the queue past the stale threshold.
const StaleJobMessage = "Stale pending job exceeded queue threshold"

// InterruptedJobMessage is the diagnostic recorded when a job left running by
// a dead daemon is put back in the queue.
const InterruptedJobMessage = "Interrupted by daemon restart; requeued"

// ShutdownCancelReason is the reason recorded when jobs are cancelled because
// the daemon is stopping.
const ShutdownCancelReason = "Daemon stopped"

var allJobStatuses = []JobStatus{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
	StatusSkipped,
}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ActiveJobStatuses are the non-terminal statuses: a post with a job in one of
// these states is not eligible for a fresh enqueue.
var ActiveJobStatuses = []JobStatus{StatusPending, StatusRunning}

// ParseJobStatus validates and canonicalizes a status string.
func ParseJobStatus(value string) (JobStatus, error) {
	status := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := jobStatusSet[status]; !ok {
		return "", fmt.Errorf("unknown job status %q", value)
	}
	return status, nil
}

// AllJobStatuses returns every recognized status in lifecycle order.
func AllJobStatuses() []JobStatus {
	out := make([]JobStatus, len(allJobStatuses))
	copy(out, allJobStatuses)
	return out
}

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusSkipped:
		return true
	default:
		return false
	}
}

// ProcessingJob represents one processing attempt for a post.
type ProcessingJob struct {
	ID                 string
	PostGUID           string
	Status             JobStatus
	CurrentStep        int
	StepName           string
	TotalSteps         int
	ProgressPercentage float64
	ErrorMessage       string
	RequestedByUserID  string
	BillingUserID      string
	RunID              int64
	CreatedAt          time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
}

// Run is the singleton jobs-manager run row: the current scheduling epoch and
// its derived counters.
type Run struct {
	ID              int64
	Status          string
	Trigger         string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CountersResetAt *time.Time
	TotalJobs       int
	QueuedJobs      int
	RunningJobs     int
	CompletedJobs   int
	FailedJobs      int
	SkippedJobs     int
}

// RunID is the fixed primary key of the singleton run row.
const RunID int64 = 1

// Run statuses.
const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
)

// Post is the subject of processing.
type Post struct {
	GUID               string
	FeedID             int64
	Title              string
	AudioURL           string
	ProcessedAudioPath string
	PublishedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Processed reports whether the post already has ad-free audio.
func (p *Post) Processed() bool {
	return p != nil && strings.TrimSpace(p.ProcessedAudioPath) != ""
}

// Feed is a podcast source.
type Feed struct {
	ID            int64
	URL           string
	Title         string
	LastCheckedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Setting is a key/value application setting.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
