package queue_test

import (
	"context"
	"testing"
	"time"

	"vidnote/internal/artifacts"
	"vidnote/internal/queue"
	"vidnote/internal/testsupport"
)

func TestNewTaskIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first, err := store.NewTask(ctx, "abc123def456", "https://example.com/v/1", "detailed", "", "")
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if first.ID == 0 || first.Status != queue.StatusPending {
		t.Fatalf("unexpected first insert: %#v", first)
	}

	second, err := store.NewTask(ctx, "abc123def456", "https://example.com/v/1", "detailed", "", "")
	if err != nil {
		t.Fatalf("NewTask repeat: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row on resubmit, got %d and %d", first.ID, second.ID)
	}
}

func TestClaimNextReturnsOldestPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	older := testsupport.NewTask(t, store, "task-old", "https://example.com/v/old", "minimal")
	testsupport.NewTask(t, store, "task-new", "https://example.com/v/new", "minimal")

	claimed, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != older.ID {
		t.Fatalf("expected oldest task, got %#v", claimed)
	}
	if claimed.Status != queue.StatusDownloading || claimed.LastHeartbeat == nil {
		t.Fatalf("claim should move to downloading with heartbeat: %#v", claimed)
	}

	// The claimed row must not be claimable again.
	next, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext second: %v", err)
	}
	if next == nil || next.TaskID != "task-new" {
		t.Fatalf("expected remaining pending task, got %#v", next)
	}
}

func TestClaimNextEmptyQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	task, err := store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if task != nil {
		t.Fatalf("expected nil on empty queue, got %#v", task)
	}
}

func TestRequestCancelPendingIsImmediate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "cancel-me", "https://example.com/v/2", "detailed")

	ok, err := store.RequestCancel(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	if !ok {
		t.Fatal("expected pending task to be cancellable")
	}

	fetched, err := store.GetByTaskID(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("GetByTaskID: %v", err)
	}
	if fetched.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", fetched.Status)
	}
}

func TestRequestCancelProcessingSetsFlag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "in-flight", "https://example.com/v/3", "detailed")
	task.Status = queue.StatusTranscribing
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	ok, err := store.RequestCancel(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	if !ok {
		t.Fatal("expected processing task to accept cancel request")
	}

	fetched, err := store.GetByTaskID(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("GetByTaskID: %v", err)
	}
	if fetched.Status != queue.StatusTranscribing || !fetched.CancelRequested {
		t.Fatalf("expected cancel flag on running task: %#v", fetched)
	}
}

func TestRequestCancelTerminalRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "done", "https://example.com/v/4", "detailed")
	task.Status = queue.StatusCompleted
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	ok, err := store.RequestCancel(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	if ok {
		t.Fatal("terminal task must not be cancellable")
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "flaky", "https://example.com/v/5", "detailed")
	task.Status = queue.StatusFailed
	task.Stage = "transcribe"
	task.ErrorKind = "transcription"
	task.ErrorMessage = "whisper exited 1"
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	count, err := store.RetryFailed(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one retried task, got %d", count)
	}

	fetched, err := store.GetByTaskID(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("GetByTaskID: %v", err)
	}
	if fetched.Status != queue.StatusPending || fetched.ErrorMessage != "" || fetched.ErrorKind != "" {
		t.Fatalf("retry should clear failure state: %#v", fetched)
	}
}

func TestReclaimStale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewTask(t, store, "stale", "https://example.com/v/6", "detailed")

	claimed, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %v %v", claimed, err)
	}

	// Heartbeat is fresh, nothing to reclaim yet.
	count, err := store.ReclaimStale(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if count != 0 {
		t.Fatalf("fresh heartbeat reclaimed: %d", count)
	}

	count, err = store.ReclaimStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reclaimed task, got %d", count)
	}

	fetched, err := store.GetByTaskID(ctx, "stale")
	if err != nil {
		t.Fatalf("GetByTaskID: %v", err)
	}
	if fetched.Status != queue.StatusPending || fetched.LastHeartbeat != nil {
		t.Fatalf("reclaim should requeue the task: %#v", fetched)
	}
}

func TestRebuildFromDisk(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	files := testsupport.MustOpenArtifacts(t, cfg)

	ctx := context.Background()

	// A registry row without a snapshot disappears on rebuild.
	testsupport.NewTask(t, store, "orphan", "https://example.com/v/7", "detailed")

	for _, record := range []*artifacts.StatusRecord{
		{TaskID: "finished", Status: "completed", VideoURL: "https://example.com/v/8", Style: "detailed"},
		{TaskID: "midflight", Status: "transcribing", VideoURL: "https://example.com/v/9", Style: "minimal"},
	} {
		if err := files.SaveStatus(record); err != nil {
			t.Fatalf("SaveStatus: %v", err)
		}
	}

	restored, err := store.RebuildFromDisk(ctx, files)
	if err != nil {
		t.Fatalf("RebuildFromDisk: %v", err)
	}
	if restored != 2 {
		t.Fatalf("expected two restored tasks, got %d", restored)
	}

	if orphan, err := store.GetByTaskID(ctx, "orphan"); err != nil || orphan != nil {
		t.Fatalf("orphan row should be gone: %#v %v", orphan, err)
	}

	midflight, err := store.GetByTaskID(ctx, "midflight")
	if err != nil {
		t.Fatalf("GetByTaskID: %v", err)
	}
	if midflight.Status != queue.StatusPending {
		t.Fatalf("mid-stage snapshot should requeue as pending, got %s", midflight.Status)
	}

	finished, err := store.GetByTaskID(ctx, "finished")
	if err != nil {
		t.Fatalf("GetByTaskID: %v", err)
	}
	if finished.Status != queue.StatusCompleted {
		t.Fatalf("completed snapshot should stay completed, got %s", finished.Status)
	}
}

func TestHealthCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewTask(t, store, "p1", "https://example.com/v/10", "detailed")
	done := testsupport.NewTask(t, store, "c1", "https://example.com/v/11", "detailed")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if summary.Total != 2 || summary.Pending != 1 || summary.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
