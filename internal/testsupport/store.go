package testsupport

import (
	"context"
	"testing"

	"vidnote/internal/artifacts"
	"vidnote/internal/config"
	"vidnote/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenArtifacts opens the artifact store for tests.
func MustOpenArtifacts(t testing.TB, cfg *config.Config) *artifacts.Store {
	t.Helper()

	store, err := artifacts.NewStore(cfg.Paths.DataDir)
	if err != nil {
		t.Fatalf("artifacts.NewStore: %v", err)
	}
	return store
}

// NewTask enqueues a pending task for tests using the provided store.
func NewTask(t testing.TB, store *queue.Store, taskID, videoURL, style string) *queue.Task {
	t.Helper()

	task, err := store.NewTask(context.Background(), taskID, videoURL, style, "", "")
	if err != nil {
		t.Fatalf("store.NewTask: %v", err)
	}
	return task
}
