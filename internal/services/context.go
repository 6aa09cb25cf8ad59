package services

import "context"

// scope is the per-job identity carried through a pipeline run. Each With*
// call stores a modified copy, so parent contexts are never affected.
type scope struct {
	jobID     int64
	hasJobID  bool
	stage     string
	worker    string
	requestID string
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, edit func(*scope)) context.Context {
	s := scopeFrom(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithJobID tags ctx with the dubbing job id.
func WithJobID(ctx context.Context, id int64) context.Context {
	return withScope(ctx, func(s *scope) { s.jobID, s.hasJobID = id, true })
}

// JobIDFromContext returns the job id, if set.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	s := scopeFrom(ctx)
	return s.jobID, s.hasJobID
}

// WithStage tags ctx with the pipeline stage. Empty names are ignored.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.stage = stage })
}

// StageFromContext returns the stage name, if set.
func StageFromContext(ctx context.Context) (string, bool) {
	s := scopeFrom(ctx)
	return s.stage, s.stage != ""
}

// WithWorker tags ctx with the worker lane running the job.
func WithWorker(ctx context.Context, worker string) context.Context {
	if worker == "" {
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.worker = worker })
}

// WorkerFromContext returns the worker lane, if set.
func WorkerFromContext(ctx context.Context) (string, bool) {
	s := scopeFrom(ctx)
	return s.worker, s.worker != ""
}

// WithRequestID tags ctx with the correlation id shared by every log line
// and HTTP call of one run.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.requestID = id })
}

// RequestIDFromContext returns the correlation id, if set.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	s := scopeFrom(ctx)
	return s.requestID, s.requestID != ""
}
