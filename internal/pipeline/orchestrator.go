package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"dubber/internal/config"
	"dubber/internal/dubbing"
	"dubber/internal/logging"
	"dubber/internal/metrics"
	"dubber/internal/queue"
	"dubber/internal/services"
	"dubber/internal/stage"
)

// Reporter persists interim and terminal job state. queue.Store implements it.
type Reporter interface {
	UpdateProgress(ctx context.Context, id int64, stage dubbing.Stage, progress float64, message string) error
	Complete(ctx context.Context, id int64, result dubbing.Result) error
	Fail(ctx context.Context, id int64, failure dubbing.Failure) error
	CancelRequested(ctx context.Context, id int64) (bool, error)
}

var errHardDeadline = errors.New("hard deadline exceeded")

// Orchestrator runs dubbing jobs one stage after another.
type Orchestrator struct {
	cfg        *config.Config
	adapters   stage.Adapters
	reporter   Reporter
	logger     *zap.Logger
	steps      []step
	soft, hard time.Duration
	now        func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDeadlines overrides the configured soft and hard run deadlines. A
// zero value disables the deadline.
func WithDeadlines(soft, hard time.Duration) Option {
	return func(o *Orchestrator) {
		o.soft = soft
		o.hard = hard
	}
}

// WithClock replaces time.Now for elapsed-time reporting.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds an Orchestrator over the given adapters. Job state is written
// through reporter.
func New(cfg *config.Config, adapters stage.Adapters, reporter Reporter, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		adapters: adapters,
		reporter: reporter,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		soft:     cfg.SoftDeadline(),
		hard:     cfg.HardDeadline(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.steps = o.buildSteps()
	return o
}

// HealthChecks reports the readiness of every adapter.
func (o *Orchestrator) HealthChecks(ctx context.Context) []stage.Health {
	return o.adapters.HealthChecks(ctx)
}

// stepError carries the failure of one step.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%s: %v", e.step, e.err)
}

func (e *stepError) Unwrap() error {
	return e.err
}

// Run executes job to a terminal state. The outcome is recorded through the
// Reporter; the returned error is the recorded failure, a persistence error,
// or the context error when ctx ended before the job did. A job interrupted
// by ctx is left in its active stage for the reclaimer.
//
// The cancel flag is read only at stage boundaries before Finalizing. A
// running adapter call is never interrupted by it, so a cancel that arrives
// during the last working stage lets the job finish.
func (o *Orchestrator) Run(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return errors.New("pipeline: nil job")
	}
	ctx = services.WithJobID(ctx, job.ID)
	if job.RequestID != "" {
		ctx = services.WithRequestID(ctx, job.RequestID)
	}
	logger := logging.WithContext(ctx, o.logger)
	persist := context.WithoutCancel(ctx)

	runCtx := ctx
	if hard := o.hard; hard > 0 {
		var stop context.CancelFunc
		runCtx, stop = context.WithTimeoutCause(runCtx, hard, errHardDeadline)
		defer stop()
	}
	if soft := o.soft; soft > 0 {
		timer := time.AfterFunc(soft, func() {
			logging.WarnWithContext(logger, "run exceeded soft deadline", "run_deadline_soft",
				zap.Duration("soft_deadline", soft),
				zap.String(logging.FieldErrorHint, "check adapter latency or raise pipeline.soft_deadline_minutes"),
				zap.String(logging.FieldImpact, "job will be aborted at the hard deadline"),
			)
		})
		defer timer.Stop()
	}
	r, err := o.newRun(ctx, job, logger)
	if err != nil {
		return o.fail(runCtx, persist, nil, "setup", dubbing.StageValidating, err)
	}
	defer r.lc.Cleanup(persist)

	logger.Info("job started",
		zap.String(logging.FieldEventType, "job_start"),
		zap.String("input", job.InputPath),
		zap.String("media_kind", string(r.kind)),
		zap.String("target_language", r.target),
	)

	var reported dubbing.Stage
	for _, st := range o.steps {
		if ctx.Err() != nil {
			logger.Info("run interrupted by shutdown", zap.String(logging.FieldStage, string(st.stage)))
			return ctx.Err()
		}
		if st.stage != reported && cancellable(st.stage) {
			if err := o.checkCancel(runCtx, persist, job.ID, logger); err != nil {
				return o.fail(runCtx, persist, r, st.name, st.stage, err)
			}
		}
		if st.skip != nil && st.skip(r) {
			logger.Debug("step skipped", zap.String("step", st.name))
			continue
		}
		if st.stage != reported {
			if err := o.reporter.UpdateProgress(persist, job.ID, st.stage, st.stage.Progress(), st.stage.Message()); err != nil {
				logging.ErrorWithContext(logger, "failed to record progress", "progress_persist_failed",
					zap.Error(err),
					zap.String(logging.FieldStage, string(st.stage)),
					zap.String(logging.FieldErrorHint, "check queue database access"),
				)
				return fmt.Errorf("record progress: %w", err)
			}
			reported = st.stage
		}
		if err := o.execute(runCtx, r, st); err != nil {
			if ctx.Err() != nil {
				logger.Info("run interrupted by shutdown", zap.String(logging.FieldStage, string(st.stage)))
				return ctx.Err()
			}
			rule := RuleFor(st.name)
			kind := o.classify(runCtx, err, rule.Kind)
			if decide(rule, kind) == Degrade && st.recover != nil {
				recErr := st.recover(r)
				if recErr == nil {
					r.degrade(st.stage, kind, err, logger)
					continue
				}
				err = fmt.Errorf("%w; fallback failed: %v", err, recErr)
			}
			return o.fail(runCtx, persist, r, st.name, st.stage, err)
		}
	}

	result, err := r.result(o.now())
	if err != nil {
		return o.fail(runCtx, persist, r, StepFinalize, dubbing.StageFinalizing, err)
	}
	if err := o.reporter.Complete(persist, job.ID, result); err != nil {
		logging.ErrorWithContext(logger, "failed to record completion", "complete_persist_failed",
			zap.Error(err),
			zap.String(logging.FieldErrorHint, "check queue database access"),
		)
		return fmt.Errorf("record completion: %w", err)
	}
	metrics.JobsFinishedTotal.WithLabelValues(metrics.OutcomeDone, "").Inc()
	for _, d := range result.Degradations {
		metrics.DegradationsTotal.WithLabelValues(string(d.Kind)).Inc()
	}
	logger.Info("job completed",
		zap.String(logging.FieldEventType, "job_complete"),
		zap.String("output", result.OutputPath),
		zap.Int("degradations", len(result.Degradations)),
		zap.Float64("processing_seconds", result.ProcessingSeconds),
	)
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run, st step) error {
	stageCtx := services.WithStage(ctx, string(st.stage))
	logger := logging.WithContext(stageCtx, o.logger).With(zap.String("step", st.name))
	started := o.now()
	logger.Debug("step started", zap.String(logging.FieldEventType, "stage_start"))
	err := runStep(stageCtx, r, st)
	elapsed := o.now().Sub(started)
	metrics.ObserveStage(string(st.stage), elapsed)
	if err != nil {
		return &stepError{step: st.name, err: err}
	}
	logger.Debug("step completed",
		zap.String(logging.FieldEventType, "stage_complete"),
		zap.Duration("stage_duration", elapsed),
	)
	return nil
}

// runStep turns a panic inside a step into an error so the step's policy
// decides the outcome and the worker survives.
func runStep(ctx context.Context, r *run, st step) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("step %s panicked: %v", st.name, p)
		}
	}()
	return st.exec(ctx, r)
}

// classify maps a step error to a kind. A fired hard deadline wins over
// whatever the adapter reported.
func (o *Orchestrator) classify(runCtx context.Context, err error, stepKind dubbing.ErrorKind) dubbing.ErrorKind {
	if errors.Is(context.Cause(runCtx), errHardDeadline) {
		return dubbing.KindTimeout
	}
	return services.Classify(err, stepKind)
}

func (o *Orchestrator) fail(runCtx, persist context.Context, r *run, stepName string, st dubbing.Stage, err error) error {
	rule := RuleFor(stepName)
	kind := o.classify(runCtx, err, rule.Kind)
	failure := dubbing.Failure{
		Stage:   st,
		Kind:    kind,
		Message: failureMessage(kind, err),
	}
	if r != nil {
		failure.FallbackAttempted = r.fallbackAttempted
	}
	logger := logging.WithContext(services.WithStage(runCtx, string(st)), o.logger)
	logging.ErrorWithContext(logger, "job failed", "stage_failure",
		zap.String("step", stepName),
		zap.String("error_kind", string(kind)),
		zap.Bool("fallback_attempted", failure.FallbackAttempted),
		zap.Error(err),
		zap.String(logging.FieldErrorHint, hintFor(kind)),
	)
	if jobID, ok := services.JobIDFromContext(runCtx); ok {
		if perr := o.reporter.Fail(persist, jobID, failure); perr != nil {
			logging.ErrorWithContext(logger, "failed to record failure", "fail_persist_failed",
				zap.Error(perr),
				zap.String(logging.FieldErrorHint, "check queue database access"),
			)
			return fmt.Errorf("record failure: %w", perr)
		}
	}
	metrics.JobsFinishedTotal.WithLabelValues(metrics.OutcomeFailed, string(kind)).Inc()
	return fmt.Errorf("%s: %w", kind, err)
}

func failureMessage(kind dubbing.ErrorKind, err error) string {
	switch kind {
	case dubbing.KindTimeout:
		return "processing exceeded the hard deadline"
	case dubbing.KindCancelled:
		return "cancelled by request"
	}
	if err == nil {
		return string(kind)
	}
	return strings.TrimSpace(err.Error())
}

func hintFor(kind dubbing.ErrorKind) string {
	switch kind {
	case dubbing.KindInputNotFound:
		return "check that the input file exists and is readable"
	case dubbing.KindUnsupportedFormat:
		return "submit one of the supported audio or video formats"
	case dubbing.KindTimeout:
		return "raise pipeline.hard_deadline_minutes or shorten the input"
	case dubbing.KindCancelled:
		return "no action needed"
	case dubbing.KindSynthesisFailed:
		return "check the synthesis model install and the fallback provider"
	default:
		return "run dubber doctor to verify external tools"
	}
}

// cancellable reports whether the boundary into s is a cancel checkpoint.
// Finalizing only assembles the result of work already done.
func cancellable(s dubbing.Stage) bool {
	return s != dubbing.StageFinalizing
}

func (o *Orchestrator) checkCancel(runCtx, persist context.Context, id int64, logger *zap.Logger) error {
	if errors.Is(context.Cause(runCtx), errHardDeadline) {
		return services.Wrap(services.ErrTimeout, "", "deadline", "hard deadline exceeded", nil)
	}
	cancelled, err := o.reporter.CancelRequested(persist, id)
	if err != nil {
		logging.WarnWithContext(logger, "failed to read cancel flag", "cancel_check_failed",
			zap.Error(err),
			zap.String(logging.FieldErrorHint, "check queue database access"),
			zap.String(logging.FieldImpact, "cancellation may be observed late"),
		)
		return nil
	}
	if cancelled {
		return services.Wrap(services.ErrCancelled, "", "cancel", "cancellation requested", nil)
	}
	return nil
}
