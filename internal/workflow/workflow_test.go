package workflow_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vidnote/internal/artifacts"
	"vidnote/internal/config"
	"vidnote/internal/logging"
	"vidnote/internal/notes"
	"vidnote/internal/queue"
	"vidnote/internal/screenshot"
	"vidnote/internal/services"
	"vidnote/internal/stage"
	"vidnote/internal/testsupport"
	"vidnote/internal/workflow"
)

const sampleMarkdown = `# Demo Video

Intro paragraph.

## 1. First Topic

Body of the first topic.

## 2. Second Topic

Body of the second topic.
`

type fakeDownloader struct {
	audioCalls   atomic.Int32
	videoCalls   atomic.Int32
	videoErr     error
	onFetchAudio func(ctx context.Context)
}

func (d *fakeDownloader) FetchAudio(ctx context.Context, req stage.Request, destDir string) (*notes.AudioMeta, error) {
	d.audioCalls.Add(1)
	audioPath := filepath.Join(destDir, "audio.mp3")
	if err := os.WriteFile(audioPath, []byte("mp3"), 0o644); err != nil {
		return nil, err
	}
	if d.onFetchAudio != nil {
		d.onFetchAudio(ctx)
	}
	return &notes.AudioMeta{
		AudioPath: audioPath,
		Title:     "Demo Video",
		Duration:  90,
		VideoID:   "demo123",
		Platform:  "youtube",
		SourceURL: req.VideoURL,
	}, nil
}

func (d *fakeDownloader) FetchVideo(ctx context.Context, req stage.Request, destDir string) (string, error) {
	d.videoCalls.Add(1)
	if d.videoErr != nil {
		return "", d.videoErr
	}
	videoPath := filepath.Join(destDir, "video.mp4")
	if err := os.WriteFile(videoPath, []byte("mp4"), 0o644); err != nil {
		return "", err
	}
	return videoPath, nil
}

func (d *fakeDownloader) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("downloader")
}

type fakeTranscriber struct {
	calls    atomic.Int32
	segments []notes.Segment
	err      error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req stage.Request, meta *notes.AudioMeta) (*notes.Transcript, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	t := &notes.Transcript{Segments: f.segments}
	t.FullText = t.JoinText()
	return t, nil
}

func (f *fakeTranscriber) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("transcriber")
}

type fakeSummarizer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req stage.Request, meta *notes.AudioMeta, transcript *notes.Transcript) (*notes.Note, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &notes.Note{Markdown: sampleMarkdown}, nil
}

func (f *fakeSummarizer) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("summarizer")
}

func spokenSegments() []notes.Segment {
	return []notes.Segment{
		{Start: 0, End: 10, Text: "intro"},
		{Start: 10, End: 40, Text: "first topic"},
		{Start: 40, End: 85, Text: "second topic"},
	}
}

type harness struct {
	cfg          *config.Config
	registry     *queue.Store
	files        *artifacts.Store
	downloader   *fakeDownloader
	transcriber  *fakeTranscriber
	summarizer   *fakeSummarizer
	orchestrator *workflow.Orchestrator
	logger       *slog.Logger
}

func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	registry := testsupport.MustOpenStore(t, cfg)
	files := testsupport.MustOpenArtifacts(t, cfg)

	reconciler := screenshot.NewReconciler(cfg)
	reconciler.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		testsupport.WriteFile(t, args[len(args)-1], 8)
		return nil
	})

	h := &harness{
		cfg:         cfg,
		registry:    registry,
		files:       files,
		downloader:  &fakeDownloader{},
		transcriber: &fakeTranscriber{segments: spokenSegments()},
		summarizer:  &fakeSummarizer{},
		logger:      logging.NewNop(),
	}
	h.orchestrator = workflow.NewOrchestrator(cfg, files, registry,
		h.downloader, h.transcriber, h.summarizer, reconciler, h.logger)
	return h
}

func (h *harness) claim(t *testing.T, videoURL string) *queue.Task {
	t.Helper()
	taskID := notes.TaskID(videoURL, notes.StyleDetailed)
	testsupport.NewTask(t, h.registry, taskID, videoURL, string(notes.StyleDetailed))
	task, err := h.registry.ClaimByTaskID(context.Background(), taskID)
	if err != nil || task == nil {
		t.Fatalf("claim task: %v %v", task, err)
	}
	return task
}

func (h *harness) mustGet(t *testing.T, taskID string) *queue.Task {
	t.Helper()
	task, err := h.registry.GetByTaskID(context.Background(), taskID)
	if err != nil || task == nil {
		t.Fatalf("get task: %v %v", task, err)
	}
	return task
}

func TestRunCompletesPipeline(t *testing.T) {
	h := newHarness(t, nil)
	task := h.claim(t, "https://www.youtube.com/watch?v=demo123")

	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored := h.mustGet(t, task.TaskID)
	if stored.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", stored.Status, stored.ErrorMessage)
	}

	markdown, err := h.files.LoadNote(task.TaskID)
	if err != nil {
		t.Fatalf("LoadNote: %v", err)
	}
	if !strings.Contains(markdown, "](screenshots/") {
		t.Fatalf("note missing screenshot links:\n%s", markdown)
	}

	result, err := h.files.LoadResult(task.TaskID)
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	if result.Title != "Demo Video" || result.Style != notes.StyleDetailed {
		t.Fatalf("unexpected result %+v", result)
	}

	record, err := h.files.LoadStatus(task.TaskID)
	if err != nil {
		t.Fatalf("LoadStatus: %v", err)
	}
	if record.Status != string(queue.StatusCompleted) || record.Error != nil {
		t.Fatalf("unexpected status snapshot %+v", record)
	}
}

func TestRunServesCachedResult(t *testing.T) {
	h := newHarness(t, nil)
	task := h.claim(t, "https://www.youtube.com/watch?v=demo123")
	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := h.downloader.audioCalls.Load(); got != 1 {
		t.Fatalf("cached result should not refetch audio, got %d calls", got)
	}
	if got := h.transcriber.calls.Load(); got != 1 {
		t.Fatalf("cached result should not retranscribe, got %d calls", got)
	}
	if got := h.summarizer.calls.Load(); got != 1 {
		t.Fatalf("cached result should not resummarize, got %d calls", got)
	}
}

func TestRunResumesFromLastStage(t *testing.T) {
	h := newHarness(t, nil)
	task := h.claim(t, "https://www.youtube.com/watch?v=demo123")
	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Drop the note and result, keeping audio and transcript artifacts.
	for _, name := range []string{artifacts.FileNote, artifacts.FileResult} {
		if err := os.Remove(h.files.Path(task.TaskID, name)); err != nil {
			t.Fatalf("remove %s: %v", name, err)
		}
	}

	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if got := h.downloader.audioCalls.Load(); got != 1 {
		t.Fatalf("audio stage should be cached, got %d calls", got)
	}
	if got := h.transcriber.calls.Load(); got != 1 {
		t.Fatalf("transcript stage should be cached, got %d calls", got)
	}
	if got := h.summarizer.calls.Load(); got != 2 {
		t.Fatalf("summarize stage should rerun, got %d calls", got)
	}
	if status := h.mustGet(t, task.TaskID).Status; status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", status)
	}
}

func TestRunCorruptTranscriptIsCacheMiss(t *testing.T) {
	h := newHarness(t, nil)
	task := h.claim(t, "https://www.youtube.com/watch?v=demo123")
	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	for _, name := range []string{artifacts.FileNote, artifacts.FileResult} {
		if err := os.Remove(h.files.Path(task.TaskID, name)); err != nil {
			t.Fatalf("remove %s: %v", name, err)
		}
	}
	if err := os.WriteFile(h.files.Path(task.TaskID, artifacts.FileTranscript), []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("corrupt transcript: %v", err)
	}

	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if got := h.transcriber.calls.Load(); got != 2 {
		t.Fatalf("corrupt transcript should recompute, got %d calls", got)
	}
}

func TestRunSilentAudioCompletes(t *testing.T) {
	h := newHarness(t, nil)
	h.transcriber.segments = nil
	task := h.claim(t, "https://www.youtube.com/watch?v=quiet")

	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status := h.mustGet(t, task.TaskID).Status; status != queue.StatusCompleted {
		t.Fatalf("silent audio should complete, got %s", status)
	}
	if got := h.downloader.videoCalls.Load(); got != 0 {
		t.Fatalf("no segments means no video fetch, got %d calls", got)
	}
}

func TestRunStageFailureRecordsStageAndKind(t *testing.T) {
	h := newHarness(t, nil)
	h.transcriber.err = services.Wrap(services.ErrTranscription, "transcribe", "run model", "model load failed", nil)
	task := h.claim(t, "https://www.youtube.com/watch?v=demo123")

	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("Run should absorb stage failures: %v", err)
	}

	stored := h.mustGet(t, task.TaskID)
	if stored.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.Stage != workflow.StageTranscribe || stored.ErrorKind != "transcription" {
		t.Fatalf("unexpected failure fields: stage=%q kind=%q", stored.Stage, stored.ErrorKind)
	}

	record, err := h.files.LoadStatus(task.TaskID)
	if err != nil {
		t.Fatalf("LoadStatus: %v", err)
	}
	if record.Error == nil || record.Error.Stage != workflow.StageTranscribe || record.Error.Kind != "transcription" {
		t.Fatalf("failure record not persisted: %+v", record.Error)
	}
	if !strings.Contains(record.Error.Reason, "model load failed") {
		t.Fatalf("failure reason lost: %q", record.Error.Reason)
	}
	if got := h.summarizer.calls.Load(); got != 0 {
		t.Fatalf("later stages must not run after a failure, got %d calls", got)
	}
}

func TestRunVideoFetchFailureCompletesWithoutScreenshots(t *testing.T) {
	h := newHarness(t, nil)
	h.downloader.videoErr = services.Wrap(services.ErrDownload, "download", "fetch video", "geo blocked", nil)
	task := h.claim(t, "https://www.youtube.com/watch?v=demo123")

	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status := h.mustGet(t, task.TaskID).Status; status != queue.StatusCompleted {
		t.Fatalf("video failure must not fail the task, got %s", status)
	}

	markdown, err := h.files.LoadNote(task.TaskID)
	if err != nil {
		t.Fatalf("LoadNote: %v", err)
	}
	if strings.Contains(markdown, "](screenshots/") {
		t.Fatal("note should have no screenshot links")
	}

	record, err := h.files.LoadStatus(task.TaskID)
	if err != nil {
		t.Fatalf("LoadStatus: %v", err)
	}
	if len(record.Warnings) == 0 || !strings.Contains(record.Warnings[0], "screenshots skipped") {
		t.Fatalf("expected skip warning, got %v", record.Warnings)
	}
}

func TestRunPartialFrameFailureCompletesWithWarnings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenStore(t, cfg)
	files := testsupport.MustOpenArtifacts(t, cfg)

	call := 0
	reconciler := screenshot.NewReconciler(cfg)
	reconciler.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		call++
		if call == 2 {
			return errors.New("decode error")
		}
		testsupport.WriteFile(t, args[len(args)-1], 8)
		return nil
	})

	downloader := &fakeDownloader{}
	transcriber := &fakeTranscriber{segments: spokenSegments()}
	summarizer := &fakeSummarizer{}
	orch := workflow.NewOrchestrator(cfg, files, registry, downloader, transcriber, summarizer, reconciler, logging.NewNop())

	taskID := notes.TaskID("https://www.youtube.com/watch?v=demo123", notes.StyleDetailed)
	testsupport.NewTask(t, registry, taskID, "https://www.youtube.com/watch?v=demo123", string(notes.StyleDetailed))
	task, err := registry.ClaimByTaskID(context.Background(), taskID)
	if err != nil || task == nil {
		t.Fatalf("claim: %v %v", task, err)
	}

	if err := orch.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, err := registry.GetByTaskID(context.Background(), taskID)
	if err != nil || stored.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %v %v", stored, err)
	}

	record, err := files.LoadStatus(taskID)
	if err != nil {
		t.Fatalf("LoadStatus: %v", err)
	}
	if len(record.Warnings) != 1 || !strings.Contains(record.Warnings[0], "decode error") {
		t.Fatalf("expected one frame warning, got %v", record.Warnings)
	}

	markdown, err := files.LoadNote(taskID)
	if err != nil {
		t.Fatalf("LoadNote: %v", err)
	}
	if !strings.Contains(markdown, "](screenshots/") {
		t.Fatal("surviving frames should still be spliced")
	}
}

func TestRunObservesCancelBetweenStages(t *testing.T) {
	h := newHarness(t, nil)
	task := h.claim(t, "https://www.youtube.com/watch?v=demo123")

	h.downloader.onFetchAudio = func(ctx context.Context) {
		if _, err := h.registry.RequestCancel(context.Background(), task.TaskID); err != nil {
			t.Errorf("RequestCancel: %v", err)
		}
	}

	if err := h.orchestrator.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status := h.mustGet(t, task.TaskID).Status; status != queue.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", status)
	}
	if got := h.transcriber.calls.Load(); got != 0 {
		t.Fatalf("cancel must stop before the next stage, got %d transcribe calls", got)
	}

	record, err := h.files.LoadStatus(task.TaskID)
	if err != nil {
		t.Fatalf("LoadStatus: %v", err)
	}
	if record.Status != string(queue.StatusCancelled) {
		t.Fatalf("snapshot should be cancelled, got %s", record.Status)
	}
}

func TestManagerProcessesQueue(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Workflow.QueuePollInterval = 1
	})
	manager := workflow.NewManager(h.cfg, h.registry, h.orchestrator, h.logger)

	urls := []string{
		"https://www.youtube.com/watch?v=one",
		"https://www.youtube.com/watch?v=two",
	}
	for _, url := range urls {
		testsupport.NewTask(t, h.registry, notes.TaskID(url, notes.StyleDetailed), url, string(notes.StyleDetailed))
	}

	manager.Start(context.Background())
	defer manager.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for {
		summary, err := h.registry.Health(context.Background())
		if err != nil {
			t.Fatalf("Health: %v", err)
		}
		if summary.Completed == len(urls) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue not drained: %+v", summary)
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, health := range manager.Health(context.Background()) {
		if !health.Ready {
			t.Fatalf("stage %s unhealthy: %s", health.Name, health.Detail)
		}
	}
}

func TestManagerRunInline(t *testing.T) {
	h := newHarness(t, nil)
	manager := workflow.NewManager(h.cfg, h.registry, h.orchestrator, h.logger)

	url := "https://www.youtube.com/watch?v=sync"
	taskID := notes.TaskID(url, notes.StyleMinimal)
	testsupport.NewTask(t, h.registry, taskID, url, string(notes.StyleMinimal))

	ran, err := manager.RunInline(context.Background(), taskID)
	if err != nil || !ran {
		t.Fatalf("RunInline: ran=%v err=%v", ran, err)
	}
	if status := h.mustGet(t, taskID).Status; status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", status)
	}

	// A second inline run finds no pending row to claim.
	ran, err = manager.RunInline(context.Background(), taskID)
	if err != nil || ran {
		t.Fatalf("second RunInline should be a no-claim: ran=%v err=%v", ran, err)
	}
}
