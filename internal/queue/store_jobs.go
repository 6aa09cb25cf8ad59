package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dubber/internal/dubbing"
)

// NewJobParams describes a job to enqueue.
type NewJobParams struct {
	InputPath      string
	MediaKind      dubbing.MediaKind
	TargetLanguage string
	VoiceSettings  dubbing.VoiceSettings
	RequestID      string
}

// NewJob inserts a queued job and returns the stored row. Every call creates
// a distinct job.
func (s *Store) NewJob(ctx context.Context, params NewJobParams) (*Job, error) {
	if strings.TrimSpace(params.InputPath) == "" {
		return nil, errors.New("new job: input path required")
	}
	if params.MediaKind == "" {
		return nil, errors.New("new job: media kind required")
	}
	var settingsJSON string
	if len(params.VoiceSettings) > 0 {
		encoded, err := json.Marshal(params.VoiceSettings)
		if err != nil {
			return nil, fmt.Errorf("marshal voice settings: %w", err)
		}
		settingsJSON = string(encoded)
	}

	timestamp := nowString()
	res, err := s.exec(
		ctx,
		`INSERT INTO jobs (
            input_path, media_kind, target_language, voice_settings_json,
            stage, progress, progress_message, request_id, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.InputPath,
		string(params.MediaKind),
		params.TargetLanguage,
		nullableString(settingsJSON),
		string(dubbing.StageQueued),
		dubbing.StageQueued.Progress(),
		dubbing.StageQueued.Message(),
		nullableString(params.RequestID),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing job yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs ordered by id, optionally filtered to the given stages.
func (s *Store) List(ctx context.Context, stages ...dubbing.Stage) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(stages) > 0 {
		query += ` WHERE stage IN (` + makePlaceholders(len(stages)) + `)`
		args = stageArgs(stages)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimNext atomically moves the oldest queued job to validating, stamps its
// heartbeat and bumps its attempt counter. It returns (nil, nil) when the
// queue is empty.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	var job *Job
	err := retryOnBusy(ctx, func() error {
		now := nowString()
		row := s.db.QueryRowContext(ctx,
			`UPDATE jobs
             SET stage = ?, progress_message = ?, attempts = attempts + 1,
                 last_heartbeat = ?, updated_at = ?
             WHERE id = (SELECT id FROM jobs WHERE stage = ? ORDER BY id LIMIT 1)
               AND stage = ?
             RETURNING `+jobColumns,
			string(dubbing.StageValidating),
			dubbing.StageValidating.Message(),
			now,
			now,
			string(dubbing.StageQueued),
			string(dubbing.StageQueued),
		)
		claimed, scanErr := scanJob(row)
		if errors.Is(scanErr, sql.ErrNoRows) {
			job = nil
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return job, nil
}

// Remove deletes a job that no worker owns. It reports whether a row was
// removed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	active := activeStages()
	args := append([]any{id}, stageArgs(active)...)
	res, err := s.exec(ctx,
		`DELETE FROM jobs WHERE id = ? AND stage NOT IN (`+makePlaceholders(len(active))+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ClearCompleted removes every job in the done stage.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs WHERE stage = ?`, string(dubbing.StageDone))
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes every job in the failed stage.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs WHERE stage = ?`, string(dubbing.StageFailed))
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}
