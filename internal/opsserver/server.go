package opsserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dubber/internal/logging"
	"dubber/internal/metrics"
	"dubber/internal/queue"
	"dubber/internal/workflow"
)

// StatusSource reports workflow diagnostics.
type StatusSource interface {
	Status(ctx context.Context) workflow.StatusSummary
}

// DatabaseChecker probes the queue database. Stats feeds the queue depth
// collector.
type DatabaseChecker interface {
	metrics.QueueStats
	CheckHealth(ctx context.Context) (queue.DatabaseHealth, error)
}

// Notifier is told when a job was submitted through the API.
type Notifier interface {
	Notify()
}

// Options supplies the collaborators the server reads from.
type Options struct {
	Bind     string
	Token    string
	Status   StatusSource
	Database DatabaseChecker
	Jobs     JobService
	Notifier Notifier
}

// Server is the ops HTTP listener.
type Server struct {
	opts     Options
	logger   *zap.Logger
	started  time.Time
	router   chi.Router
	http     *http.Server
	listener net.Listener
}

// New builds the router. The listener is not opened until Start.
func New(opts Options, logger *zap.Logger) (*Server, error) {
	if strings.TrimSpace(opts.Bind) == "" {
		return nil, errors.New("ops bind address required")
	}
	s := &Server{
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "ops"),
		started: time.Now(),
	}

	registry := prometheus.NewRegistry()
	if opts.Database != nil {
		registry.MustRegister(metrics.NewCollector(opts.Database))
	}
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, registry}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recoverer(s.logger))
	r.Use(accessLog(s.logger))
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Get("/jobs", s.handleListJobs)
			r.Post("/jobs", s.handleSubmitJob)
			r.Get("/jobs/{id}", s.handleGetJob)
			r.Post("/jobs/{id}/cancel", s.handleCancelJob)
		})
	})
	s.router = r

	s.http = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start opens the listener and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("ops listen: %w", err)
	}
	s.listener = listener
	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops server error", zap.Error(err))
		}
	}()
	s.logger.Info("ops server listening", zap.String("address", listener.Addr().String()))
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
