package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vidnote/internal/api"
	"vidnote/internal/artifacts"
	"vidnote/internal/config"
	"vidnote/internal/deps"
	"vidnote/internal/logging"
	"vidnote/internal/notes"
	"vidnote/internal/queue"
	"vidnote/internal/services"
	"vidnote/internal/watch"
	"vidnote/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *queue.Store
	files    *artifacts.Store
	workflow *workflow.Manager
	watcher  *watch.Watcher
	server   *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, registry *queue.Store, files *artifacts.Store, manager *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || registry == nil || files == nil || manager == nil {
		return nil, errors.New("daemon requires config, registry, artifact store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "vidnoted.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		files:    files,
		workflow: manager,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	if cfg.Watch.Enabled {
		watcher, err := watch.New(cfg, d.submitLocalFile, logger)
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		d.watcher = watcher
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.server = server
	return d, nil
}

// Start acquires the daemon lock and launches the workers, watcher, and API
// server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vidnote daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.workflow.Start(d.ctx)
	if d.watcher != nil {
		d.watcher.Start(d.ctx)
	}
	if d.server != nil {
		if err := d.server.start(d.ctx); err != nil {
			d.Stop()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("vidnote daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.server != nil {
		d.server.stop()
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("vidnote daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.registry.Close()
}

// APIAddr reports the bound API listener address, for tests binding port 0.
func (d *Daemon) APIAddr() string {
	if d.server == nil {
		return ""
	}
	return d.server.addr()
}

// Submit validates and enqueues a submission. Resubmitting a completed task
// returns its cached result marker; resubmitting a failed or cancelled task
// requeues it.
func (d *Daemon) Submit(ctx context.Context, req api.SubmitRequest) (*api.SubmitResponse, error) {
	videoURL, style, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	taskID := notes.TaskID(videoURL, style)

	if _, err := d.files.LoadResult(taskID); err == nil {
		if _, err := d.registry.NewTask(ctx, taskID, videoURL, string(style), req.Model, req.Extras); err != nil {
			return nil, err
		}
		return &api.SubmitResponse{TaskID: taskID, Status: string(queue.StatusCompleted), Cached: true}, nil
	}

	task, err := d.registry.NewTask(ctx, taskID, videoURL, string(style), req.Model, req.Extras)
	if err != nil {
		return nil, err
	}
	if task.Status == queue.StatusFailed || task.Status == queue.StatusCancelled {
		if _, err := d.registry.RetryFailed(ctx, taskID); err != nil {
			return nil, err
		}
		if task.Status == queue.StatusCancelled {
			// RetryFailed only touches failed rows; requeue cancelled explicitly.
			task.Status = queue.StatusPending
			task.Stage = ""
			task.ErrorKind = ""
			task.ErrorMessage = ""
			task.CancelRequested = false
			if err := d.registry.Update(ctx, task); err != nil {
				return nil, err
			}
		}
		task.Status = queue.StatusPending
	}

	// Snapshot immediately so the submission survives a registry rebuild.
	if task.Status == queue.StatusPending {
		if err := d.files.SaveStatus(&artifacts.StatusRecord{
			TaskID:    taskID,
			Status:    string(queue.StatusPending),
			Message:   "queued",
			VideoURL:  videoURL,
			Style:     string(style),
			Model:     req.Model,
			Extras:    req.Extras,
			CreatedAt: task.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}

	d.logger.Info("task submitted",
		logging.String(logging.FieldTaskID, taskID),
		logging.String("video_url", videoURL),
		logging.String(logging.FieldStyle, string(style)),
	)
	return &api.SubmitResponse{TaskID: taskID, Status: string(task.Status)}, nil
}

// SubmitSync enqueues a submission and processes it on the calling goroutine,
// blocking until the task is terminal. Completed tasks carry the finished
// note; failed or cancelled tasks return their status record so the caller
// sees the originating stage and reason.
func (d *Daemon) SubmitSync(ctx context.Context, req api.SubmitRequest) (*api.ResultResponse, error) {
	accepted, err := d.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if !accepted.Cached {
		ran, err := d.workflow.RunInline(ctx, accepted.TaskID)
		if err != nil {
			return nil, err
		}
		if !ran {
			// The poll loop claimed the row first; wait for its worker.
			if err := d.awaitTerminal(ctx, accepted.TaskID); err != nil {
				return nil, err
			}
		}
	}

	view, err := d.Task(ctx, accepted.TaskID)
	if err != nil {
		return nil, err
	}
	if view.Status != string(queue.StatusCompleted) {
		return &api.ResultResponse{Task: *view}, nil
	}
	result, err := d.files.LoadResult(accepted.TaskID)
	if err != nil {
		return nil, err
	}
	return &api.ResultResponse{Task: *view, Result: api.FromResult(result)}, nil
}

// awaitTerminal polls the registry until the task reaches a terminal status.
func (d *Daemon) awaitTerminal(ctx context.Context, taskID string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		task, err := d.registry.GetByTaskID(ctx, taskID)
		if err != nil {
			return err
		}
		if task != nil && task.Terminal() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Task returns the current view of one task, merging registry state with the
// on-disk status snapshot.
func (d *Daemon) Task(ctx context.Context, taskID string) (*api.TaskView, error) {
	task, err := d.registry.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "get task", "unknown task "+taskID, nil)
	}
	record, _ := d.files.LoadStatus(taskID)
	view := api.FromTask(task, record)
	return &view, nil
}

// Result returns the finished note for a completed task.
func (d *Daemon) Result(ctx context.Context, taskID string) (*api.ResultResponse, error) {
	view, err := d.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	result, err := d.files.LoadResult(taskID)
	if err != nil {
		return nil, err
	}
	return &api.ResultResponse{Task: *view, Result: api.FromResult(result)}, nil
}

// ListTasks returns registry tasks filtered by optional statuses.
func (d *Daemon) ListTasks(ctx context.Context, statuses ...queue.Status) ([]api.TaskView, error) {
	tasks, err := d.registry.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return api.FromTasks(tasks), nil
}

// Cancel requests cooperative cancellation of a task.
func (d *Daemon) Cancel(ctx context.Context, taskID string) (bool, error) {
	return d.registry.RequestCancel(ctx, taskID)
}

// RetryFailed requeues failed tasks, optionally a subset.
func (d *Daemon) RetryFailed(ctx context.Context, taskIDs ...string) (int64, error) {
	return d.registry.RetryFailed(ctx, taskIDs...)
}

// Status returns daemon runtime information.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	summary, err := d.registry.Health(ctx)
	if err != nil {
		d.logger.Warn("queue health unavailable", logging.Error(err))
	}

	depStatuses := deps.CheckBinaries(deps.Requirements(d.cfg))
	dependencies := make([]api.DependencyStatus, 0, len(depStatuses))
	for _, status := range depStatuses {
		dependencies = append(dependencies, api.DependencyStatus{
			Name:      status.Name,
			Command:   status.Command,
			Optional:  status.Optional,
			Available: status.Available,
			Detail:    status.Detail,
		})
	}

	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		RegistryPath: d.registry.Path(),
		LockFilePath: d.lockPath,
		Queue:        api.FromHealthSummary(summary),
		Stages:       api.FromStageHealth(d.workflow.Health(ctx)),
		Dependencies: dependencies,
	}
}

// submitLocalFile enqueues a dropped file with the default style.
func (d *Daemon) submitLocalFile(ctx context.Context, path string) error {
	_, err := d.Submit(ctx, api.SubmitRequest{VideoURL: path})
	return err
}
