package workflow

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"vidnote/internal/artifacts"
	"vidnote/internal/config"
	"vidnote/internal/logging"
	"vidnote/internal/notes"
	"vidnote/internal/notifications"
	"vidnote/internal/queue"
	"vidnote/internal/screenshot"
	"vidnote/internal/services"
	"vidnote/internal/stage"
)

// Stage names recorded in failure records and logs.
const (
	StageDownload   = "download"
	StageTranscribe = "transcribe"
	StageSummarize  = "summarize"
	StageScreenshot = "screenshot"
)

// Orchestrator runs the pipeline for one task: download, transcribe,
// summarize, reconcile. Every stage boundary is cache-or-compute against the
// artifact store, so re-running a task resumes from the last completed stage.
type Orchestrator struct {
	cfg         *config.Config
	files       *artifacts.Store
	registry    *queue.Store
	downloader  stage.Downloader
	transcriber stage.Transcriber
	summarizer  stage.Summarizer
	reconciler  *screenshot.Reconciler
	notifier    notifications.Service
	logger      *slog.Logger
}

// SetNotifier attaches a push notification service for terminal outcomes.
func (o *Orchestrator) SetNotifier(notifier notifications.Service) {
	o.notifier = notifier
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(cfg *config.Config, files *artifacts.Store, registry *queue.Store, downloader stage.Downloader, transcriber stage.Transcriber, summarizer stage.Summarizer, reconciler *screenshot.Reconciler, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		files:       files,
		registry:    registry,
		downloader:  downloader,
		transcriber: transcriber,
		summarizer:  summarizer,
		reconciler:  reconciler,
		logger:      logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// Run executes the pipeline for the claimed task until a terminal state.
// The returned error reflects infrastructure problems only; stage failures
// are captured in the task itself.
func (o *Orchestrator) Run(ctx context.Context, task *queue.Task) error {
	ctx = services.WithTaskID(ctx, task.TaskID)
	logger := logging.WithContext(ctx, o.logger)

	style, ok := notes.ParseStyle(task.Style)
	if !ok {
		return o.fail(ctx, task, StageDownload,
			services.Wrap(services.ErrValidation, StageDownload, "parse style", "unknown note style "+task.Style, nil))
	}
	req := stage.Request{
		TaskID:   task.TaskID,
		VideoURL: task.VideoURL,
		Style:    style,
		Model:    task.Model,
		Extras:   task.Extras,
	}

	// A completed result on disk means a resubmission hit the cache whole.
	if result, err := o.files.LoadResult(task.TaskID); err == nil {
		logger.Info("task already completed, serving cached result")
		return o.complete(ctx, task, result, nil)
	}

	taskDir, err := o.files.TaskDir(task.TaskID)
	if err != nil {
		return err
	}

	warnings := []string{}

	// Download.
	if err := o.setStatus(ctx, task, queue.StatusDownloading, "fetching audio"); err != nil {
		return err
	}
	meta, cached, err := o.audioStage(ctx, req, taskDir)
	if err != nil {
		return o.fail(ctx, task, StageDownload, err)
	}
	if cached {
		logger.Info("audio metadata cache hit", logging.String(logging.FieldStage, StageDownload))
	}

	if done, err := o.observeCancel(ctx, task); done || err != nil {
		return err
	}

	// Transcribe.
	if err := o.setStatus(ctx, task, queue.StatusTranscribing, "transcribing audio"); err != nil {
		return err
	}
	transcript, cached, err := o.transcriptStage(services.WithStage(ctx, StageTranscribe), req, meta)
	if err != nil {
		return o.fail(ctx, task, StageTranscribe, err)
	}
	if cached {
		logger.Info("transcript cache hit", logging.String(logging.FieldStage, StageTranscribe))
	}

	if done, err := o.observeCancel(ctx, task); done || err != nil {
		return err
	}

	// Summarize.
	if err := o.setStatus(ctx, task, queue.StatusSummarizing, "generating note"); err != nil {
		return err
	}
	markdown, cached, err := o.noteStage(services.WithStage(ctx, StageSummarize), req, meta, transcript)
	if err != nil {
		return o.fail(ctx, task, StageSummarize, err)
	}
	if cached {
		logger.Info("note cache hit", logging.String(logging.FieldStage, StageSummarize))
	}

	if done, err := o.observeCancel(ctx, task); done || err != nil {
		return err
	}

	// Reconcile screenshots. Frame problems degrade the note, never the task.
	if o.cfg.Screenshots.Enabled && !strings.Contains(markdown, "](screenshots/") {
		markdown, warnings = o.screenshotStage(services.WithStage(ctx, StageScreenshot), req, meta, transcript, markdown, warnings, logger)
	}

	if err := o.files.SaveNote(task.TaskID, markdown); err != nil {
		return err
	}

	result := &notes.Result{
		TaskID:   task.TaskID,
		Title:    meta.Title,
		Markdown: markdown,
		Duration: meta.Duration,
		Platform: meta.Platform,
		VideoID:  meta.VideoID,
		CoverURL: meta.CoverURL,
		Style:    style,
	}
	if err := o.files.SaveResult(task.TaskID, result); err != nil {
		return err
	}
	return o.complete(ctx, task, result, warnings)
}

// audioStage returns the cached audio metadata or invokes the downloader.
func (o *Orchestrator) audioStage(ctx context.Context, req stage.Request, taskDir string) (*notes.AudioMeta, bool, error) {
	if meta, err := o.files.LoadAudioMeta(req.TaskID); err == nil && meta.AudioPath != "" {
		if _, statErr := os.Stat(meta.AudioPath); statErr == nil {
			return meta, true, nil
		}
	}
	meta, err := o.downloader.FetchAudio(services.WithStage(ctx, StageDownload), req, taskDir)
	if err != nil {
		return nil, false, err
	}
	if err := o.files.SaveAudioMeta(req.TaskID, meta); err != nil {
		return nil, false, err
	}
	return meta, false, nil
}

// transcriptStage returns the cached transcript or invokes the transcriber.
// A corrupt or semantically invalid cached transcript is a cache miss.
func (o *Orchestrator) transcriptStage(ctx context.Context, req stage.Request, meta *notes.AudioMeta) (*notes.Transcript, bool, error) {
	if transcript, err := o.files.LoadTranscript(req.TaskID); err == nil {
		if transcript.Validate() == nil {
			return transcript, true, nil
		}
	}
	transcript, err := o.transcriber.Transcribe(ctx, req, meta)
	if err != nil {
		return nil, false, err
	}
	if err := o.files.SaveTranscript(req.TaskID, transcript); err != nil {
		return nil, false, err
	}
	return transcript, false, nil
}

// noteStage returns the cached note markdown or invokes the summarizer.
func (o *Orchestrator) noteStage(ctx context.Context, req stage.Request, meta *notes.AudioMeta, transcript *notes.Transcript) (string, bool, error) {
	if markdown, err := o.files.LoadNote(req.TaskID); err == nil && strings.TrimSpace(markdown) != "" {
		return markdown, true, nil
	}
	note, err := o.summarizer.Summarize(ctx, req, meta, transcript)
	if err != nil {
		return "", false, err
	}
	if err := o.files.SaveNote(req.TaskID, note.Markdown); err != nil {
		return "", false, err
	}
	return note.Markdown, false, nil
}

// screenshotStage fetches the video lazily and reconciles frames into the
// note. All errors here are recorded as warnings.
func (o *Orchestrator) screenshotStage(ctx context.Context, req stage.Request, meta *notes.AudioMeta, transcript *notes.Transcript, markdown string, warnings []string, logger *slog.Logger) (string, []string) {
	if transcript == nil || len(transcript.Segments) == 0 {
		return markdown, warnings
	}

	videoPath := meta.VideoPath
	if videoPath == "" || !fileExists(videoPath) {
		taskDir, err := o.files.TaskDir(req.TaskID)
		if err != nil {
			return markdown, append(warnings, "screenshots skipped: "+err.Error())
		}
		videoPath, err = o.downloader.FetchVideo(ctx, req, taskDir)
		if err != nil {
			logger.Warn("video fetch failed, completing without screenshots", logging.Error(err))
			return markdown, append(warnings, "screenshots skipped: "+err.Error())
		}
		meta.VideoPath = videoPath
		if err := o.files.SaveAudioMeta(req.TaskID, meta); err != nil {
			return markdown, append(warnings, "screenshots skipped: "+err.Error())
		}
	}

	shotDir, err := o.files.ScreenshotsDir(req.TaskID)
	if err != nil {
		return markdown, append(warnings, "screenshots skipped: "+err.Error())
	}

	spliced, _, frameWarnings, err := o.reconciler.Reconcile(ctx, markdown, transcript, meta.Duration, videoPath, shotDir)
	if err != nil {
		logger.Warn("screenshot reconciliation failed, completing without screenshots", logging.Error(err))
		return markdown, append(warnings, "screenshots skipped: "+err.Error())
	}
	for _, warning := range frameWarnings {
		logger.Warn("frame extraction failed", logging.Alert(warning))
	}
	return spliced, append(warnings, frameWarnings...)
}

// observeCancel checks the cooperative cancellation flag at a stage boundary.
func (o *Orchestrator) observeCancel(ctx context.Context, task *queue.Task) (bool, error) {
	if err := ctx.Err(); err != nil {
		// Daemon shutdown: leave the task processing, startup reset requeues it.
		return true, nil
	}
	current, err := o.registry.GetByTaskID(ctx, task.TaskID)
	if err != nil {
		return false, err
	}
	if current == nil || !current.CancelRequested {
		return false, nil
	}
	if err := o.registry.MarkCancelled(ctx, task.TaskID); err != nil {
		return true, err
	}
	return true, o.persistSnapshot(task, string(queue.StatusCancelled), queue.CancelledByUserReason, nil, nil)
}

func (o *Orchestrator) setStatus(ctx context.Context, task *queue.Task, status queue.Status, message string) error {
	task.Status = status
	if err := o.registry.Update(ctx, task); err != nil {
		return err
	}
	return o.persistSnapshot(task, string(status), message, nil, nil)
}

func (o *Orchestrator) fail(ctx context.Context, task *queue.Task, stageName string, stageErr error) error {
	kind := services.Kind(stageErr)
	logging.WithContext(ctx, o.logger).Error("stage failed",
		logging.String(logging.FieldStage, stageName),
		logging.String("kind", kind),
		logging.Error(stageErr),
	)

	task.Status = queue.StatusFailed
	task.Stage = stageName
	task.ErrorKind = kind
	task.ErrorMessage = stageErr.Error()
	if err := o.registry.Update(ctx, task); err != nil {
		return err
	}
	if o.notifier != nil {
		if err := o.notifier.NotifyTaskFailed(context.WithoutCancel(ctx), task.VideoURL, stageName, stageErr.Error()); err != nil {
			logging.WithContext(ctx, o.logger).Warn("failure notification not delivered", logging.Error(err))
		}
	}
	failure := &artifacts.FailureRecord{Stage: stageName, Kind: kind, Reason: stageErr.Error()}
	return o.persistSnapshot(task, string(queue.StatusFailed), "", failure, nil)
}

func (o *Orchestrator) complete(ctx context.Context, task *queue.Task, result *notes.Result, warnings []string) error {
	task.Status = queue.StatusCompleted
	task.Stage = ""
	task.ErrorKind = ""
	task.ErrorMessage = ""
	if err := o.registry.Update(ctx, task); err != nil {
		return err
	}
	logging.WithContext(ctx, o.logger).Info("task completed",
		logging.String("title", result.Title),
		logging.Int("warnings", len(warnings)),
	)
	if o.notifier != nil {
		if err := o.notifier.NotifyTaskCompleted(context.WithoutCancel(ctx), result.Title, len(warnings)); err != nil {
			logging.WithContext(ctx, o.logger).Warn("completion notification not delivered", logging.Error(err))
		}
	}
	return o.persistSnapshot(task, string(queue.StatusCompleted), "", nil, warnings)
}

func (o *Orchestrator) persistSnapshot(task *queue.Task, status, message string, failure *artifacts.FailureRecord, warnings []string) error {
	return o.files.SaveStatus(&artifacts.StatusRecord{
		TaskID:    task.TaskID,
		Status:    status,
		Message:   message,
		Error:     failure,
		Warnings:  warnings,
		VideoURL:  task.VideoURL,
		Style:     task.Style,
		Model:     task.Model,
		Extras:    task.Extras,
		CreatedAt: task.CreatedAt,
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
