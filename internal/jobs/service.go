package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dubber/internal/dubbing"
	"dubber/internal/language"
	"dubber/internal/logging"
	"dubber/internal/metrics"
	"dubber/internal/queue"
	"dubber/internal/services"
)

// Store is the slice of queue.Store the service needs.
type Store interface {
	NewJob(ctx context.Context, params queue.NewJobParams) (*queue.Job, error)
	GetByID(ctx context.Context, id int64) (*queue.Job, error)
	RequestCancel(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, stages ...dubbing.Stage) ([]*queue.Job, error)
}

// ErrUnknownJob is returned by GetStatus for ids the store does not know.
var ErrUnknownJob = errors.New("unknown job")

// Status is a read-only snapshot of a job.
type Status struct {
	ID             int64
	InputPath      string
	MediaKind      dubbing.MediaKind
	TargetLanguage string
	Stage          dubbing.Stage
	Progress       float64
	Message        string
	// ResultPath is set once the job is done.
	ResultPath string
	// Error and Kind are set once the job failed.
	Error           string
	Kind            dubbing.ErrorKind
	CancelRequested bool
	Result          *dubbing.Result
	RequestID       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether the snapshot is final.
func (s Status) Terminal() bool {
	return s.Stage.IsTerminal()
}

// Service is the job handle: submit, inspect and cancel.
type Service struct {
	store         Store
	defaultTarget string
	logger        *zap.Logger
}

// New builds a Service. defaultTarget is used when Submit gets an empty
// target language.
func New(store Store, defaultTarget string, logger *zap.Logger) *Service {
	return &Service{
		store:         store,
		defaultTarget: defaultTarget,
		logger:        logging.NewComponentLogger(logger, "jobs"),
	}
}

// Submit enqueues path for dubbing into targetLanguage and returns the new
// job id. The extension must be on the allow-list; existence is checked when
// the job runs.
func (s *Service) Submit(ctx context.Context, path, targetLanguage string, settings dubbing.VoiceSettings) (int64, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, services.Wrap(services.ErrValidation, "submit", "", "input path required", nil)
	}
	kind, ok := dubbing.ClassifyPath(path)
	if !ok {
		return 0, services.Wrap(services.ErrUnsupportedFormat, "submit", "", fmt.Sprintf("unsupported file type %q", filepath.Ext(path)), nil)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	target := strings.TrimSpace(targetLanguage)
	if target == "" {
		target = s.defaultTarget
	}
	if !language.Supported(target) {
		return 0, services.Wrap(services.ErrValidation, "submit", "", fmt.Sprintf("unsupported target language %q", targetLanguage), nil)
	}
	target = language.Normalize(target)

	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}

	job, err := s.store.NewJob(ctx, queue.NewJobParams{
		InputPath:      path,
		MediaKind:      kind,
		TargetLanguage: target,
		VoiceSettings:  settings,
		RequestID:      requestID,
	})
	if err != nil {
		return 0, fmt.Errorf("submit: %w", err)
	}
	metrics.JobsSubmittedTotal.WithLabelValues(string(kind)).Inc()
	s.logger.Info("job submitted",
		zap.Int64(logging.FieldJobID, job.ID),
		zap.String(logging.FieldCorrelationID, requestID),
		zap.String("input", path),
		zap.String("media_kind", string(kind)),
		zap.String("target_language", target),
	)
	return job.ID, nil
}

// GetStatus returns the last committed snapshot of job id.
func (s *Service) GetStatus(ctx context.Context, id int64) (Status, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Status{}, err
	}
	if job == nil {
		return Status{}, fmt.Errorf("job %d: %w", id, ErrUnknownJob)
	}
	return Snapshot(job)
}

// Cancel requests cancellation. It returns false for unknown or terminal
// jobs. The job stops at the next stage boundary.
func (s *Service) Cancel(ctx context.Context, id int64) (bool, error) {
	ok, err := s.store.RequestCancel(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info("cancellation requested", zap.Int64(logging.FieldJobID, id))
	}
	return ok, nil
}

// List returns snapshots of every job, optionally filtered to stages.
func (s *Service) List(ctx context.Context, stages ...dubbing.Stage) ([]Status, error) {
	jobs, err := s.store.List(ctx, stages...)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(jobs))
	for _, job := range jobs {
		status, err := Snapshot(job)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

// Snapshot converts a stored job into a Status.
func Snapshot(job *queue.Job) (Status, error) {
	status := Status{
		ID:              job.ID,
		InputPath:       job.InputPath,
		MediaKind:       job.MediaKind,
		TargetLanguage:  job.TargetLanguage,
		Stage:           job.Stage,
		Progress:        job.Progress,
		Message:         job.ProgressMessage,
		CancelRequested: job.CancelRequested,
		RequestID:       job.RequestID,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
	switch job.Stage {
	case dubbing.StageDone:
		result, err := job.Result()
		if err != nil {
			return Status{}, fmt.Errorf("job %d: %w", job.ID, err)
		}
		if result != nil {
			status.Result = result
			status.ResultPath = result.OutputPath
		}
	case dubbing.StageFailed:
		failure, err := job.Failure()
		if err != nil {
			return Status{}, fmt.Errorf("job %d: %w", job.ID, err)
		}
		if failure != nil {
			status.Error = failure.Message
			status.Kind = failure.Kind
		}
	}
	return status, nil
}
