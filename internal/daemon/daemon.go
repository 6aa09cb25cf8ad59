package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"dubber/internal/artifact"
	"dubber/internal/config"
	"dubber/internal/deps"
	"dubber/internal/dubbing"
	"dubber/internal/inbox"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/opsserver"
	"dubber/internal/queue"
	"dubber/internal/stage"
	"dubber/internal/workflow"
)

const shutdownGrace = 5 * time.Second

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *queue.Store
	jobs     *jobs.Service
	workflow *workflow.Manager
	ops      *opsserver.Server
	inbox    *inbox.Watcher

	lockPath string
	lock     *flock.Flock

	janitorInterval time.Duration

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	OpsAddress   string
	InboxDir     string
	Dependencies []deps.Status
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithJanitorInterval sets how often stale staging directories are swept.
func WithJanitorInterval(d time.Duration) Option {
	return func(dm *Daemon) {
		if d > 0 {
			dm.janitorInterval = d
		}
	}
}

// New constructs a daemon with initialized dependencies. The ops server and
// inbox watcher are created only when configured.
func New(cfg *config.Config, store *queue.Store, logger *zap.Logger, wf *workflow.Manager, svc *jobs.Service, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil || svc == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, and job service")
	}

	d := &Daemon{
		cfg:             cfg,
		logger:          logging.NewComponentLogger(logger, "daemon"),
		store:           store,
		jobs:            svc,
		workflow:        wf,
		lockPath:        cfg.LockPath(),
		lock:            flock.New(cfg.LockPath()),
		janitorInterval: time.Hour,
	}
	for _, opt := range opts {
		opt(d)
	}

	if bind := strings.TrimSpace(cfg.Ops.Bind); bind != "" {
		ops, err := opsserver.New(opsserver.Options{
			Bind:     bind,
			Token:    cfg.Ops.Token,
			Status:   wf,
			Database: store,
			Jobs:     svc,
			Notifier: wf,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("ops server: %w", err)
		}
		d.ops = ops
	}
	if dir := strings.TrimSpace(cfg.Paths.InboxDir); dir != "" {
		d.inbox = inbox.New(dir, svc, wf, logger)
	}
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager, the ops
// server, the inbox watcher and the staging janitor.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dubber daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.sweepStaging(runCtx)

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.ops != nil {
		if err := d.ops.Start(); err != nil {
			d.workflow.Stop()
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}
	if d.inbox != nil {
		if err := d.inbox.Start(runCtx); err != nil {
			logging.WarnWithContext(d.logger, "inbox watcher unavailable", "inbox_start_failed",
				zap.Error(err),
				zap.String(logging.FieldImpact, "dropped files will not be submitted"),
			)
			d.inbox = nil
		}
	}

	d.cancel = cancel
	d.wg.Add(1)
	go d.runJanitor(runCtx)

	if health := d.workflow.Status(runCtx).StageHealth; !stage.AllReady(health) {
		logging.WarnWithContext(d.logger, "stage adapters not ready", "adapters_unready",
			zap.String("checks", stage.Describe(health)),
			zap.String(logging.FieldImpact, "jobs that reach these stages will fail or degrade"),
			zap.String(logging.FieldErrorHint, "run dubber doctor"),
		)
	}

	d.running.Store(true)
	d.logger.Info("dubber daemon started",
		zap.String("lock", d.lockPath),
		zap.String("queue_db", d.store.Path()),
		zap.Int("workers", d.cfg.Workflow.Workers),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. Jobs that
// were mid-run stay active in the queue and are requeued on the next start.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.inbox != nil {
		d.inbox.Stop()
	}
	if d.ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		if err := d.ops.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("ops server shutdown", zap.Error(err))
		}
		cancel()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", zap.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("dubber daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Jobs returns the job handle the daemon serves.
func (d *Daemon) Jobs() *jobs.Service {
	return d.jobs
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		InboxDir:     d.cfg.Paths.InboxDir,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if d.ops != nil {
		status.OpsAddress = d.ops.Addr()
	}
	return status
}

func (d *Daemon) runJanitor(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepStaging(ctx)
		}
	}
}

// sweepStaging removes job directories left by runs that died before their
// own cleanup. Directories of unfinished jobs are never swept.
func (d *Daemon) sweepStaging(ctx context.Context) {
	hours := d.cfg.Workflow.StaleStagingHours
	if hours <= 0 {
		return
	}
	var opts []artifact.StaleOption
	if unfinished, err := d.store.List(ctx, unfinishedStages()...); err == nil {
		ids := make([]int64, 0, len(unfinished))
		for _, job := range unfinished {
			ids = append(ids, job.ID)
		}
		opts = append(opts, artifact.SkipJobs(ids...))
	} else {
		logging.WarnWithContext(d.logger, "skipping staging sweep; queue unreadable", "cleanup_warning", zap.Error(err))
		return
	}
	result := artifact.CleanStale(ctx, d.cfg.Paths.StagingDir, time.Duration(hours)*time.Hour, d.logger, opts...)
	if len(result.Removed) > 0 {
		d.logger.Info("stale staging swept", zap.Int("removed", len(result.Removed)))
	}
	for _, e := range result.Errors {
		logging.WarnWithContext(d.logger, "stale staging cleanup failed", "cleanup_warning",
			zap.String("path", e.Path),
			zap.Error(e.Error),
		)
	}
}

func unfinishedStages() []dubbing.Stage {
	var out []dubbing.Stage
	for _, st := range dubbing.AllStages() {
		if !st.IsTerminal() {
			out = append(out, st)
		}
	}
	return out
}
