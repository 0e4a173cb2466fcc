package main

import (
	"context"
	"fmt"
	"log/slog"

	"vidnote/internal/artifacts"
	"vidnote/internal/config"
	"vidnote/internal/daemon"
	"vidnote/internal/download"
	"vidnote/internal/logging"
	"vidnote/internal/notifications"
	"vidnote/internal/queue"
	"vidnote/internal/screenshot"
	"vidnote/internal/summarize"
	"vidnote/internal/transcribe"
	"vidnote/internal/workflow"
)

// bootstrap assembles the full pipeline and restores registry state from the
// on-disk status snapshots.
func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	registry, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open task registry: %w", err)
	}

	files, err := artifacts.NewStore(cfg.Paths.DataDir)
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	// status.json files are the source of truth across restarts. Tasks caught
	// mid-stage come back as pending and resume from their cached artifacts.
	restored, err := registry.RebuildFromDisk(ctx, files)
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("rebuild registry: %w", err)
	}
	logger.Info("task registry rebuilt", logging.Int("tasks", restored))

	orchestrator := workflow.NewOrchestrator(cfg, files, registry,
		download.NewStrategy(cfg),
		transcribe.NewFromConfig(cfg),
		summarize.NewService(cfg),
		screenshot.NewReconciler(cfg),
		logger,
	)
	orchestrator.SetNotifier(notifications.NewService(cfg))
	manager := workflow.NewManager(cfg, registry, orchestrator, logger)

	d, err := daemon.New(cfg, registry, files, manager, logger)
	if err != nil {
		registry.Close()
		return nil, err
	}
	return d, nil
}
