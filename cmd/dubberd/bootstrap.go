package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"dubber/internal/config"
	"dubber/internal/daemon"
	"dubber/internal/jobs"
	"dubber/internal/pipeline"
	"dubber/internal/queue"
	"dubber/internal/workflow"
)

// bootstrap assembles the daemon: queue store, stage adapters, orchestrator,
// worker lanes and job service.
func bootstrap(cfg *config.Config, logger *zap.Logger) (*daemon.Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	adapters := daemon.BuildAdapters(cfg, logger)
	orchestrator := pipeline.New(cfg, adapters, store, logger)
	manager := workflow.NewManager(cfg, store, orchestrator, logger)
	svc := jobs.New(store, cfg.Pipeline.DefaultTargetLanguage, logger)

	d, err := daemon.New(cfg, store, logger, manager, svc, daemon.WithJanitorInterval(time.Hour))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}
