package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dubber/internal/config"
	"dubber/internal/logging"
	"dubber/internal/notifications"
	"dubber/internal/queue"
	"dubber/internal/stage"
)

// Runner executes one claimed job to a terminal state. pipeline.Orchestrator
// implements it.
type Runner interface {
	Run(ctx context.Context, job *queue.Job) error
	HealthChecks(ctx context.Context) []stage.Health
}

// Manager coordinates queue processing across worker lanes.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	runner       Runner
	notifier     notifications.Service
	logger       *zap.Logger
	workers      int
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor
	wake      chan struct{}

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
	active  map[int64]string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPollInterval overrides the configured idle poll interval.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithHeartbeat overrides the configured heartbeat interval and timeout.
func WithHeartbeat(interval, timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.heartbeat.heartbeatInterval = interval
		m.heartbeat.heartbeatTimeout = timeout
	}
}

// WithNotifier replaces the notification service built from config.
func WithNotifier(n notifications.Service) ManagerOption {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, runner Runner, logger *zap.Logger, opts ...ManagerOption) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow-manager")
	workers := cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	poll := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = time.Second
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		runner:       runner,
		notifier:     notifications.NewService(cfg),
		logger:       logger,
		workers:      workers,
		pollInterval: poll,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		wake:   make(chan struct{}, 1),
		active: make(map[int64]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Notify wakes an idle lane so a freshly submitted job starts without
// waiting for the next poll.
func (m *Manager) Notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
