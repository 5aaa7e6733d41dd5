package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a processing job in a transport-friendly format.
type JobView struct {
	ID           string      `json:"id"`
	PostGUID     string      `json:"postGuid"`
	Status       string      `json:"status"`
	Progress     JobProgress `json:"progress"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	RequestedBy  string      `json:"requestedBy,omitempty"`
	BillingUser  string      `json:"billingUser,omitempty"`
	RunID        int64       `json:"runId"`
	CreatedAt    string      `json:"createdAt,omitempty"`
	StartedAt    string      `json:"startedAt,omitempty"`
	CompletedAt  string      `json:"completedAt,omitempty"`
}

// JobProgress captures step progress information for a job.
type JobProgress struct {
	Step    int     `json:"step"`
	Total   int     `json:"total"`
	Name    string  `json:"name,omitempty"`
	Percent float64 `json:"percent"`
}

// PostView describes a podcast post in a transport-friendly format.
type PostView struct {
	GUID               string `json:"guid"`
	FeedID             int64  `json:"feedId,omitempty"`
	Title              string `json:"title"`
	AudioURL           string `json:"audioUrl,omitempty"`
	ProcessedAudioPath string `json:"processedAudioPath,omitempty"`
	Processed          bool   `json:"processed"`
	PublishedAt        string `json:"publishedAt,omitempty"`
	CreatedAt          string `json:"createdAt,omitempty"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

// FeedView describes a podcast feed in a transport-friendly format.
type FeedView struct {
	ID            int64  `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title,omitempty"`
	LastCheckedAt string `json:"lastCheckedAt,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

// SettingView describes a key/value application setting.
type SettingView struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// RunView describes the singleton jobs-manager run row with its counters.
type RunView struct {
	ID          int64          `json:"id"`
	Status      string         `json:"status"`
	Trigger     string         `json:"trigger,omitempty"`
	StartedAt   string         `json:"startedAt,omitempty"`
	CompletedAt string         `json:"completedAt,omitempty"`
	Counts      map[string]int `json:"counts"`
}

// RateStats reports LLM token budget consumption over the trailing window.
type RateStats struct {
	Used          int     `json:"used"`
	Limit         int     `json:"limit"`
	Percent       float64 `json:"percent"`
	WindowSeconds int     `json:"windowSeconds"`
}

// DependencyStatus captures availability of an external tool.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	DatabasePath  string             `json:"databasePath"`
	LockFilePath  string             `json:"lockFilePath"`
	SocketPath    string             `json:"socketPath,omitempty"`
	WorkerRunning bool               `json:"workerRunning"`
	LastError     string             `json:"lastError,omitempty"`
	JobCounts     map[string]int     `json:"jobCounts"`
	Run           *RunView           `json:"run,omitempty"`
	Rate          *RateStats         `json:"rate,omitempty"`
	Dependencies  []DependencyStatus `json:"dependencies,omitempty"`
}
