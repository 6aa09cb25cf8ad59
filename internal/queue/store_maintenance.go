package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dubber/internal/dubbing"
)

// Stats returns a count of jobs grouped by stage.
func (s *Store) Stats(ctx context.Context) (map[dubbing.Stage]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT stage, COUNT(1) FROM jobs GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[dubbing.Stage]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		stats[dubbing.Stage(stage)] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for stage, count := range stats {
		health.Total += count
		switch {
		case stage == dubbing.StageQueued:
			health.Queued += count
		case stage == dubbing.StageFailed:
			health.Failed += count
		case stage == dubbing.StageDone:
			health.Done += count
		case stage.IsActive():
			health.Processing += count
		}
	}
	return health, nil
}

var expectedColumns = strings.Split(strings.ReplaceAll(jobColumns, " ", ""), ",")

// CheckHealth probes the database file, schema and integrity. A missing file
// is reported through DatabaseExists rather than as an error.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}
	switch info, err := os.Stat(s.path); {
	case errors.Is(err, os.ErrNotExist):
		return health, nil
	case err != nil:
		return health, fmt.Errorf("stat queue database: %w", err)
	case info.IsDir():
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	ctx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	fail := func(what string, err error) (DatabaseHealth, error) {
		health.Error = err.Error()
		return health, fmt.Errorf("%s: %w", what, err)
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fail("ping queue database", err)
	}
	health.DatabaseReadable = true

	version, err := s.currentVersion(ctx)
	if err != nil {
		return fail("schema", err)
	}
	health.SchemaVersion = version

	present, err := s.jobTableColumns(ctx)
	if err != nil {
		return fail("table info", err)
	}
	health.TableExists = len(present) > 0
	for _, col := range expectedColumns {
		if !present[col] {
			health.MissingColumns = append(health.MissingColumns, col)
		}
	}
	if health.TableExists {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&health.TotalJobs); err != nil {
			return fail("count jobs", err)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fail("integrity check", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}

func (s *Store) jobTableColumns(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info('jobs')")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		present[name] = true
	}
	return present, rows.Err()
}
