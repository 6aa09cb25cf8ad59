package workflow

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"dubber/internal/dubbing"
	"dubber/internal/queue"
	"dubber/internal/stage"
)

// ActiveJob names a job a lane currently owns.
type ActiveJob struct {
	ID     int64
	Worker string
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	Active      []ActiveJob
	LastError   string
	LastJob     *queue.Job
	QueueStats  map[dubbing.Stage]int
	StageHealth []stage.Health
}

// Ready reports whether the workflow is running and every adapter is ready.
func (s StatusSummary) Ready() bool {
	return s.Running && stage.AllReady(s.StageHealth)
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	active := make([]ActiveJob, 0, len(m.active))
	for id, worker := range m.active {
		active = append(active, ActiveJob{ID: id, Worker: worker})
	}
	m.mu.RUnlock()
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", zap.Error(err))
	}

	summary := StatusSummary{
		Running:    running,
		Workers:    m.workers,
		Active:     active,
		QueueStats: stats,
	}
	if m.runner != nil {
		summary.StageHealth = m.runner.HealthChecks(ctx)
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}

func (m *Manager) trackActive(id int64, worker string) {
	m.mu.Lock()
	m.active[id] = worker
	m.mu.Unlock()
}

func (m *Manager) untrackActive(id int64) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}
