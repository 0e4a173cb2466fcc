package notes

// ScreenshotRef binds an inserted image reference to the transcript segment
// that produced it. Path is relative to the task directory.
type ScreenshotRef struct {
	Path         string  `json:"path"`
	SegmentIndex int     `json:"segment_index"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
}

// Note is the reconciled markdown output plus the screenshots spliced into it.
// A note is valid only when every screenshot reference resolves to a file in
// the task directory.
type Note struct {
	Markdown    string          `json:"markdown"`
	Screenshots []ScreenshotRef `json:"screenshots,omitempty"`
}

// Result is the terminal payload persisted as result.json for a completed
// task.
type Result struct {
	TaskID   string  `json:"task_id"`
	Title    string  `json:"title"`
	Markdown string  `json:"markdown"`
	Duration float64 `json:"duration"`
	Platform string  `json:"platform"`
	VideoID  string  `json:"video_id"`
	CoverURL string  `json:"cover_url,omitempty"`
	Style    Style   `json:"style"`
}
