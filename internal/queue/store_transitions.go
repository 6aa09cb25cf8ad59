package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dubber/internal/dubbing"
)

// predecessors lists the stages a job may be in for next to be accepted.
func predecessors(next dubbing.Stage) []dubbing.Stage {
	var out []dubbing.Stage
	for _, s := range dubbing.AllStages() {
		if s.CanAdvanceTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// explainMiss resolves why a guarded UPDATE touched no rows.
func (s *Store) explainMiss(ctx context.Context, id int64) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case job == nil:
		return fmt.Errorf("job %d: %w", id, ErrNotFound)
	case job.IsTerminal():
		return fmt.Errorf("job %d is %s: %w", id, job.Stage, ErrTerminal)
	default:
		return fmt.Errorf("job %d at %s: %w", id, job.Stage, ErrStageRegression)
	}
}

// UpdateProgress records that a job entered stage with the given progress
// and message. Progress never decreases and stays below 100 until Complete.
// Terminal jobs are rejected with ErrTerminal, backward moves with
// ErrStageRegression.
func (s *Store) UpdateProgress(ctx context.Context, id int64, stage dubbing.Stage, progress float64, message string) error {
	if stage.IsTerminal() {
		return fmt.Errorf("update progress: %s must be recorded through Complete or Fail", stage)
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 99 {
		progress = 99
	}
	allowed := predecessors(stage)
	args := []any{string(stage), progress, nullableString(message), nowString(), id}
	args = append(args, stageArgs(allowed)...)
	res, err := s.exec(ctx,
		`UPDATE jobs
         SET stage = ?, progress = MAX(progress, ?), progress_message = ?, updated_at = ?
         WHERE id = ? AND stage IN (`+makePlaceholders(len(allowed))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return s.explainMiss(ctx, id)
	}
	return nil
}

// Complete freezes the job as done with progress 100 and the encoded result.
func (s *Store) Complete(ctx context.Context, id int64, result dubbing.Result) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.finish(ctx, id, dubbing.StageDone, 100, dubbing.StageDone.Message(), string(encoded), "")
}

// Fail freezes the job as failed with the encoded failure record. Progress
// keeps its last value.
func (s *Store) Fail(ctx context.Context, id int64, failure dubbing.Failure) error {
	encoded, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}
	message := failure.Message
	if message == "" {
		message = dubbing.StageFailed.Message()
	}
	return s.finish(ctx, id, dubbing.StageFailed, -1, message, "", string(encoded))
}

// finish writes a terminal state. A negative progress leaves the column
// untouched.
func (s *Store) finish(ctx context.Context, id int64, stage dubbing.Stage, progress float64, message, resultJSON, failureJSON string) error {
	res, err := s.exec(ctx,
		`UPDATE jobs
         SET stage = ?,
             progress = CASE WHEN ? < 0 THEN progress ELSE ? END,
             progress_message = ?, result_json = ?, failure_json = ?,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND stage NOT IN (?, ?)`,
		string(stage),
		progress, progress,
		nullableString(message),
		nullableString(resultJSON),
		nullableString(failureJSON),
		nowString(),
		id,
		string(dubbing.StageDone), string(dubbing.StageFailed),
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return s.explainMiss(ctx, id)
	}
	return nil
}

// RequestCancel flags a non-terminal job for cancellation. It reports false
// for unknown or terminal jobs.
func (s *Store) RequestCancel(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ?
         WHERE id = ? AND stage NOT IN (?, ?)`,
		nowString(), id, string(dubbing.StageDone), string(dubbing.StageFailed),
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CancelRequested reports whether cancellation was requested for the job.
func (s *Store) CancelRequested(ctx context.Context, id int64) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT cancel_requested FROM jobs WHERE id = ?`, id).Scan(&flag)
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := nowString()
	if _, err := s.exec(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

func (s *Store) requeue(ctx context.Context, message, extra string, extraArgs ...any) (int64, error) {
	active := activeStages()
	args := []any{string(dubbing.StageQueued), message, nowString()}
	args = append(args, stageArgs(active)...)
	args = append(args, extraArgs...)
	res, err := s.exec(ctx,
		`UPDATE jobs
         SET stage = ?, progress_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE stage IN (`+makePlaceholders(len(active))+`)`+extra,
		args...,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetActive returns every in-flight job to queued. Call it at daemon start
// before any worker runs. Progress is kept so it stays monotonic.
func (s *Store) ResetActive(ctx context.Context) (int64, error) {
	n, err := s.requeue(ctx, "Reset after restart", "")
	if err != nil {
		return 0, fmt.Errorf("reset active jobs: %w", err)
	}
	return n, nil
}

// ReclaimStale returns in-flight jobs whose heartbeat is older than cutoff
// to queued.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.requeue(ctx, "Reclaimed from stale processing",
		` AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return n, nil
}
