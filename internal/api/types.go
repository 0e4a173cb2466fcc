package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest is the payload for submitting a video URL.
type SubmitRequest struct {
	VideoURL string `json:"videoUrl"`
	Style    string `json:"style,omitempty"`
	Model    string `json:"model,omitempty"`
	Extras   string `json:"extras,omitempty"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
	// Cached reports that the submission matched an already completed task.
	Cached bool `json:"cached"`
}

// TaskView describes a task in a transport-friendly format.
type TaskView struct {
	TaskID       string   `json:"taskId"`
	VideoURL     string   `json:"videoUrl"`
	Style        string   `json:"style"`
	Model        string   `json:"model,omitempty"`
	Status       string   `json:"status"`
	Stage        string   `json:"stage,omitempty"`
	ErrorKind    string   `json:"errorKind,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	CreatedAt    string   `json:"createdAt,omitempty"`
	UpdatedAt    string   `json:"updatedAt,omitempty"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task TaskView `json:"task"`
}

// TaskListResponse wraps a collection of tasks.
type TaskListResponse struct {
	Tasks []TaskView `json:"tasks"`
}

// ResultView carries the finished note for a completed task.
type ResultView struct {
	TaskID   string  `json:"taskId"`
	Title    string  `json:"title"`
	Markdown string  `json:"markdown"`
	Duration float64 `json:"duration"`
	Platform string  `json:"platform,omitempty"`
	VideoID  string  `json:"videoId,omitempty"`
	CoverURL string  `json:"coverUrl,omitempty"`
	Style    string  `json:"style"`
}

// ResultResponse wraps a completed note, optionally with the task view for
// synchronous submissions.
type ResultResponse struct {
	Task   TaskView   `json:"task"`
	Result ResultView `json:"result"`
}

// StyleInfo describes one selectable note style.
type StyleInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StylesResponse lists the supported note styles.
type StylesResponse struct {
	Styles []StyleInfo `json:"styles"`
}

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	TaskID    string `json:"taskId"`
	Cancelled bool   `json:"cancelled"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external binary.
type DependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	RegistryPath string             `json:"registryPath"`
	LockFilePath string             `json:"lockFilePath"`
	Queue        map[string]int     `json:"queue"`
	Stages       []StageHealth      `json:"stages"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
}
