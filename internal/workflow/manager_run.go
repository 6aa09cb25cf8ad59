package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dubber/internal/logging"
	"dubber/internal/metrics"
	"dubber/internal/notifications"
	"dubber/internal/queue"
	"dubber/internal/services"
)

// Start requeues jobs left active by a previous process and begins
// background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.runner == nil {
		m.mu.Unlock()
		return errors.New("workflow runner not configured")
	}

	reset, err := m.store.ResetActive(ctx)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("reset active jobs: %w", err)
	}
	if reset > 0 {
		m.logger.Info("requeued jobs interrupted by a previous run",
			zap.Int64("count", reset),
			zap.String(logging.FieldEventType, "jobs_requeued"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers + 1)
	m.mu.Unlock()

	go m.runReclaimer(runCtx)
	for i := 1; i <= m.workers; i++ {
		go m.runLane(runCtx, fmt.Sprintf("worker-%d", i))
	}
	m.logger.Info("workflow started", zap.Int("workers", m.workers))
	return nil
}

// Stop terminates background processing and waits for completion. Jobs
// interrupted mid-run stay active and are requeued on the next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLane(ctx context.Context, name string) {
	defer m.wg.Done()
	logger := m.logger.With(zap.String(logging.FieldWorker, name))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		if err := m.processJob(ctx, name, logger, job); err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) processJob(ctx context.Context, lane string, laneLogger *zap.Logger, job *queue.Job) error {
	requestID := job.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
		job.RequestID = requestID
	}
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithWorker(jobCtx, lane)
	jobCtx = services.WithRequestID(jobCtx, requestID)
	logger := logging.WithContext(jobCtx, laneLogger)

	logger.Info("job claimed",
		zap.String(logging.FieldEventType, "job_claimed"),
		zap.String("input", job.InputPath),
		zap.Int("attempt", job.Attempts),
	)
	m.trackActive(job.ID, lane)
	metrics.ActiveJobs.Inc()
	started := time.Now()

	runErr := m.executeWithHeartbeat(jobCtx, job)

	metrics.ActiveJobs.Dec()
	m.untrackActive(job.ID)
	m.setLastJob(job)
	switch {
	case runErr == nil:
		logger.Info("job finished", zap.Duration("elapsed", time.Since(started)))
	case errors.Is(runErr, context.Canceled) && ctx.Err() != nil:
		logger.Info("job interrupted by shutdown")
		return runErr
	default:
		m.setLastError(runErr)
		logger.Warn("job did not complete",
			zap.Error(runErr),
			zap.String(logging.FieldEventType, "job_unsuccessful"),
			zap.Duration("elapsed", time.Since(started)),
		)
	}
	m.notifyOutcome(context.WithoutCancel(jobCtx), logger, job.ID)
	return runErr
}

func (m *Manager) notifyOutcome(ctx context.Context, logger *zap.Logger, id int64) {
	if m.notifier == nil {
		return
	}
	job, err := m.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return
	}
	event, payload, ok := notifications.JobOutcome(job)
	if !ok {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "job notification failed", "notification_failed",
			zap.Error(err),
			zap.String("event", string(event)),
			zap.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, job *queue.Job) error {
	stop := m.heartbeat.Beat(ctx, job.ID)
	defer stop()
	return m.runner.Run(ctx, job)
}

func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.heartbeatTimeout / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStaleJobs(ctx); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(m.logger, "reclaim stale jobs failed; stuck jobs may remain", "heartbeat_reclaim_failed",
					zap.Error(err),
					zap.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *zap.Logger, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "failed to claim next job", "queue_fetch_failed",
		zap.Error(err),
		zap.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}
