package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"vidnote/internal/config"
	"vidnote/internal/logging"
)

// videoExtensions lists the file types accepted from the drop directory.
var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".webm": {},
	".m4v":  {},
	".flv":  {},
	".mp3":  {},
	".m4a":  {},
	".wav":  {},
}

// Handler enqueues a dropped local file as a note task.
type Handler func(ctx context.Context, path string) error

// Watcher monitors the configured drop directory and enqueues new media
// files for processing.
type Watcher struct {
	dir     string
	handler Handler
	logger  *slog.Logger
	fs      *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a drop-directory watcher. The directory must exist.
func New(cfg *config.Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(cfg.Watch.Dir); err != nil {
		_ = fs.Close()
		return nil, err
	}
	return &Watcher{
		dir:     cfg.Watch.Dir,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "watch"),
		fs:      fs,
	}, nil
}

// Start launches the event loop.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(runCtx)
	}()
	w.logger.Info("drop directory watcher started", logging.String("dir", w.dir))
}

// Stop cancels the event loop and closes the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = w.fs.Close()
	w.wg.Wait()
	w.logger.Info("drop directory watcher stopped")
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isVideoFile(event.Name) {
				continue
			}
			w.wg.Add(1)
			go func(path string) {
				defer w.wg.Done()
				w.ingest(ctx, path)
			}(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", logging.Error(err))
		}
	}
}

// ingest waits for the file to finish writing, then hands it to the handler.
func (w *Watcher) ingest(ctx context.Context, path string) {
	if !waitForStableSize(ctx, path) {
		return
	}
	w.logger.Info("local file detected", logging.String("path", path))
	if err := w.handler(ctx, path); err != nil {
		w.logger.Error("enqueue local file failed", logging.String("path", path), logging.Error(err))
	}
}

// waitForStableSize polls until the file size stops changing. Copies into the
// drop directory can take a while; two identical sizes in a row is enough.
func waitForStableSize(ctx context.Context, path string) bool {
	var lastSize int64 = -1
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				return false
			}
			if info.Size() == lastSize && info.Size() > 0 {
				return true
			}
			lastSize = info.Size()
		}
	}
}

func isVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := videoExtensions[ext]
	return ok
}
