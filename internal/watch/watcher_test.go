package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vidnote/internal/logging"
	"vidnote/internal/testsupport"
	"vidnote/internal/watch"
)

func TestWatcherEnqueuesDroppedVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWatchDir())

	var (
		mu    sync.Mutex
		paths []string
	)
	handler := func(ctx context.Context, path string) error {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, path)
		return nil
	}

	w, err := watch.New(cfg, handler, logging.NewNop())
	if err != nil {
		t.Fatalf("watch.New: %v", err)
	}
	w.Start(context.Background())
	defer w.Stop()

	video := filepath.Join(cfg.Watch.Dir, "talk.mp4")
	if err := os.WriteFile(video, []byte("mp4 payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Ignored extension.
	if err := os.WriteFile(filepath.Join(cfg.Watch.Dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		mu.Lock()
		count := len(paths)
		mu.Unlock()
		if count > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("handler never invoked for dropped video")
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != video {
		t.Fatalf("unexpected handler invocations: %v", paths)
	}
}

func TestWatcherRequiresExistingDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Watch.Dir = filepath.Join(testsupport.BaseDir(cfg), "missing")
	if _, err := watch.New(cfg, func(context.Context, string) error { return nil }, logging.NewNop()); err == nil {
		t.Fatal("expected error for missing watch directory")
	}
}
