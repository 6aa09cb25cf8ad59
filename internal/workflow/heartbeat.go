package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"dubber/internal/logging"
	"dubber/internal/queue"
)

// heartbeatFailureLimit is the number of consecutive failed beats after
// which the job risks being reclaimed by another lane.
const heartbeatFailureLimit = 3

// HeartbeatMonitor keeps claimed jobs alive and requeues jobs whose owner
// stopped beating.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *zap.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a monitor. A non-positive interval disables
// beating; a non-positive timeout disables reclaiming.
func NewHeartbeatMonitor(store *queue.Store, logger *zap.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStaleJobs requeues active jobs whose last beat is older than the
// timeout.
func (h *HeartbeatMonitor) ReclaimStaleJobs(ctx context.Context) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	reclaimed, err := h.store.ReclaimStale(ctx, time.Now().Add(-h.heartbeatTimeout))
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		h.logger.Info("reclaimed stale jobs",
			zap.Int64("count", reclaimed),
			zap.String(logging.FieldEventType, "jobs_reclaimed"),
		)
	}
	return nil
}

// Beat refreshes jobID's heartbeat every interval until the returned stop
// function is called. stop blocks until the beating goroutine exits.
func (h *HeartbeatMonitor) Beat(ctx context.Context, jobID int64) (stop func()) {
	if h.heartbeatInterval <= 0 {
		return func() {}
	}
	beatCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.loop(beatCtx, jobID)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func (h *HeartbeatMonitor) loop(ctx context.Context, jobID int64) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()
	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := h.store.UpdateHeartbeat(ctx, jobID)
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, context.Canceled):
			return
		default:
			failures++
			if failures == heartbeatFailureLimit {
				logging.ErrorWithContext(logger, "heartbeat keeps failing", "heartbeat_failing",
					zap.Error(err),
					zap.Int("consecutive_failures", failures),
					zap.String(logging.FieldErrorHint, "check queue database access; the job may be reclaimed and run twice"),
				)
				continue
			}
			logger.Warn("heartbeat update failed", zap.Error(err), zap.Int("consecutive_failures", failures))
		}
	}
}
