package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidnote/internal/config"
	"vidnote/internal/logging"
	"vidnote/internal/queue"
	"vidnote/internal/services"
	"vidnote/internal/stage"
)

// Manager owns the worker pool: it polls the registry for pending tasks,
// reclaims stale claims from dead workers, and runs at most
// max_concurrent_tasks pipelines at once.
type Manager struct {
	cfg          *config.Config
	registry     *queue.Store
	orchestrator *Orchestrator
	logger       *slog.Logger

	pollInterval      time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	slots             chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds the worker pool around an orchestrator.
func NewManager(cfg *config.Config, registry *queue.Store, orchestrator *Orchestrator, logger *slog.Logger) *Manager {
	slots := cfg.Workflow.MaxConcurrentTasks
	if slots < 1 {
		slots = 1
	}
	return &Manager{
		cfg:               cfg,
		registry:          registry,
		orchestrator:      orchestrator,
		logger:            logging.NewComponentLogger(logger, "workflow"),
		pollInterval:      time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeatInterval: time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
		heartbeatTimeout:  time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
		slots:             make(chan struct{}, slots),
	}
}

// Start launches the polling loop. Safe to call once; subsequent calls are
// no-ops until Stop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.pollLoop(runCtx)
	}()
	m.logger.Info("workflow manager started",
		logging.Int("max_concurrent_tasks", cap(m.slots)),
		logging.Duration("poll_interval", m.pollInterval),
	)
}

// Stop cancels the polling loop and waits for in-flight tasks to reach a
// stage boundary and exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.logger.Info("workflow manager stopped")
}

func (m *Manager) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.dispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reclaimStale(ctx)
			m.dispatch(ctx)
		}
	}
}

// dispatch claims pending tasks while worker slots are free.
func (m *Manager) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m.slots <- struct{}{}:
		default:
			return
		}

		task, err := m.registry.ClaimNext(ctx)
		if err != nil {
			<-m.slots
			m.logger.Error("claim next task failed", logging.Error(err))
			return
		}
		if task == nil {
			<-m.slots
			return
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			defer func() { <-m.slots }()
			m.runTask(ctx, task)
		}()
	}
}

// runTask executes one pipeline with a heartbeat goroutine alongside it.
// Each run gets a fresh request ID so every log line of one attempt can be
// correlated across stages.
func (m *Manager) runTask(ctx context.Context, task *queue.Task) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldTaskID, task.TaskID))
	logger.Info("task claimed", logging.String("video_url", task.VideoURL), logging.String(logging.FieldStyle, task.Style))

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	var heartbeatDone sync.WaitGroup
	heartbeatDone.Add(1)
	go func() {
		defer heartbeatDone.Done()
		m.heartbeatLoop(heartbeatCtx, task.ID)
	}()

	if err := m.orchestrator.Run(ctx, task); err != nil {
		logger.Error("task run aborted", logging.Error(err))
	}
	stopHeartbeat()
	heartbeatDone.Wait()
}

func (m *Manager) heartbeatLoop(ctx context.Context, rowID int64) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.registry.UpdateHeartbeat(context.WithoutCancel(ctx), rowID); err != nil {
				m.logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}

// reclaimStale requeues tasks whose worker stopped heartbeating, typically
// after a crash. Cached artifacts make the rerun resume where it stopped.
func (m *Manager) reclaimStale(ctx context.Context) {
	cutoff := time.Now().Add(-m.heartbeatTimeout)
	reclaimed, err := m.registry.ReclaimStale(ctx, cutoff)
	if err != nil {
		m.logger.Error("reclaim stale tasks failed", logging.Error(err))
		return
	}
	if reclaimed > 0 {
		m.logger.Warn("reclaimed stale tasks", logging.Int64("count", reclaimed))
	}
}

// RunInline claims and processes one specific task on the caller's goroutine,
// respecting the shared concurrency limit. Used for synchronous submissions.
// Returns false when the task was already claimed or is not pending.
func (m *Manager) RunInline(ctx context.Context, taskID string) (bool, error) {
	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-m.slots }()

	task, err := m.registry.ClaimByTaskID(ctx, taskID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	m.runTask(ctx, task)
	return true, nil
}

// Health reports the readiness of every pipeline stage.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	return []stage.Health{
		m.orchestrator.downloader.HealthCheck(ctx),
		m.orchestrator.transcriber.HealthCheck(ctx),
		m.orchestrator.summarizer.HealthCheck(ctx),
	}
}
