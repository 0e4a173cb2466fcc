package api

import (
	"time"

	"vidnote/internal/artifacts"
	"vidnote/internal/notes"
	"vidnote/internal/queue"
	"vidnote/internal/stage"
)

// FromTask converts a registry row into its transport representation. The
// optional status snapshot contributes warnings not stored in the registry.
func FromTask(task *queue.Task, record *artifacts.StatusRecord) TaskView {
	if task == nil {
		return TaskView{}
	}
	view := TaskView{
		TaskID:       task.TaskID,
		VideoURL:     task.VideoURL,
		Style:        task.Style,
		Model:        task.Model,
		Status:       string(task.Status),
		Stage:        task.Stage,
		ErrorKind:    task.ErrorKind,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    formatTime(task.CreatedAt),
		UpdatedAt:    formatTime(task.UpdatedAt),
	}
	if record != nil {
		view.Warnings = record.Warnings
	}
	return view
}

// FromTasks converts a slice of registry rows.
func FromTasks(tasks []*queue.Task) []TaskView {
	if len(tasks) == 0 {
		return nil
	}
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, FromTask(task, nil))
	}
	return views
}

// FromResult converts a finished note into its transport representation.
func FromResult(result *notes.Result) ResultView {
	if result == nil {
		return ResultView{}
	}
	return ResultView{
		TaskID:   result.TaskID,
		Title:    result.Title,
		Markdown: result.Markdown,
		Duration: result.Duration,
		Platform: result.Platform,
		VideoID:  result.VideoID,
		CoverURL: result.CoverURL,
		Style:    string(result.Style),
	}
}

// FromStageHealth converts pipeline readiness records.
func FromStageHealth(healths []stage.Health) []StageHealth {
	if len(healths) == 0 {
		return nil
	}
	out := make([]StageHealth, 0, len(healths))
	for _, h := range healths {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromHealthSummary flattens queue counts into a stats map.
func FromHealthSummary(summary queue.HealthSummary) map[string]int {
	return map[string]int{
		"total":      summary.Total,
		"pending":    summary.Pending,
		"processing": summary.Processing,
		"completed":  summary.Completed,
		"failed":     summary.Failed,
		"cancelled":  summary.Cancelled,
	}
}

// AllStyles lists every selectable note style with its description.
func AllStyles() []StyleInfo {
	styles := notes.AllStyles()
	out := make([]StyleInfo, 0, len(styles))
	for _, style := range styles {
		out = append(out, StyleInfo{Name: string(style), Description: style.Description()})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
