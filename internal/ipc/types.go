package ipc

import "podscrub/internal/api"

// JobView mirrors the API job DTO for IPC callers.
type JobView = api.JobView

// RunView mirrors the API run DTO for IPC callers.
type RunView = api.RunView

// RateStats mirrors the API rate DTO for IPC callers.
type RateStats = api.RateStats

// DependencyStatus describes availability of an external tool.
type DependencyStatus = api.DependencyStatus

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse carries the responding daemon's PID.
type PingResponse struct {
	Pong bool `json:"pong"`
	PID  int  `json:"pid"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/scheduler status information.
type StatusResponse struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	DatabasePath  string             `json:"database_path"`
	LockPath      string             `json:"lock_path"`
	SocketPath    string             `json:"socket_path"`
	WorkerRunning bool               `json:"worker_running"`
	LastError     string             `json:"last_error"`
	JobCounts     map[string]int     `json:"job_counts"`
	Run           *RunView           `json:"run"`
	Rate          *RateStats         `json:"rate"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates the shutdown request was accepted.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// JobsListRequest filters job listing by status.
type JobsListRequest struct {
	Statuses []string `json:"statuses"`
	Limit    int      `json:"limit"`
}

// JobsListResponse contains job entries.
type JobsListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// JobGetRequest fetches a single job by id.
type JobGetRequest struct {
	ID string `json:"id"`
}

// JobGetResponse contains a single job entry.
type JobGetResponse struct {
	Job JobView `json:"job"`
}

// ProcessPostRequest queues a post for ad removal.
type ProcessPostRequest struct {
	PostGUID string `json:"post_guid"`
}

// ProcessPostResponse contains the queued (or already active) job.
type ProcessPostResponse struct {
	Job JobView `json:"job"`
}

// EnqueueRequest sweeps eligible posts into pending jobs.
type EnqueueRequest struct {
	Trigger string `json:"trigger"`
	Context string `json:"context"`
}

// EnqueueResponse reports the number of jobs created.
type EnqueueResponse struct {
	Created int `json:"created"`
}

// CancelJobRequest cancels one job.
type CancelJobRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// CancelJobResponse contains the job after cancellation.
type CancelJobResponse struct {
	Job JobView `json:"job"`
}

// CancelPostRequest cancels all active jobs for a post.
type CancelPostRequest struct {
	PostGUID string `json:"post_guid"`
}

// CancelPostResponse reports the number of jobs cancelled.
type CancelPostResponse struct {
	Cancelled int `json:"cancelled"`
}

// ClearJobsRequest removes all job history.
type ClearJobsRequest struct{}

// ClearJobsResponse reports the number of removed rows.
type ClearJobsResponse struct {
	Removed int `json:"removed"`
}

// CleanupStaleRequest fails pending jobs older than the threshold. A zero
// threshold uses the configured default.
type CleanupStaleRequest struct {
	OlderThanSeconds int `json:"older_than_seconds"`
}

// CleanupStaleResponse reports the number of jobs failed as stale.
type CleanupStaleResponse struct {
	Updated int `json:"updated"`
}

// RateStatsRequest fetches LLM token budget stats.
type RateStatsRequest struct{}

// RateStatsResponse carries the current window snapshot.
type RateStatsResponse struct {
	Rate RateStats `json:"rate"`
}

// CommandRequest routes a raw write command through the daemon's
// single-writer queue. For ACTION commands Model carries the action name.
type CommandRequest struct {
	Type  string         `json:"type"`
	Model string         `json:"model"`
	Data  map[string]any `json:"data"`
}

// CommandResponse reports the write outcome.
type CommandResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int64 `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next read offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
