package artifact

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"dubber/internal/logging"
)

const jobDirPrefix = "job-"

// CleanStaleResult lists what a sweep removed and what it could not.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its removal error.
type CleanupError struct {
	Path  string
	Error error
}

// DirInfo describes one job directory under the staging root.
type DirInfo struct {
	Name    string
	Path    string
	JobID   int64
	ModTime time.Time
	Size    int64
}

// StaleOption adjusts a CleanStale sweep.
type StaleOption func(*staleSweep)

type staleSweep struct {
	skip map[int64]struct{}
}

// SkipJobs protects the directories of the given jobs regardless of age.
// The daemon passes its unfinished jobs so an idle long run keeps its files.
func SkipJobs(ids ...int64) StaleOption {
	return func(s *staleSweep) {
		for _, id := range ids {
			s.skip[id] = struct{}{}
		}
	}
}

// CleanStale removes job directories under stagingRoot whose modification
// time is older than maxAge. Only directories named like JobDir are touched.
func CleanStale(ctx context.Context, stagingRoot string, maxAge time.Duration, logger *zap.Logger, opts ...StaleOption) CleanStaleResult {
	sweep := staleSweep{skip: map[int64]struct{}{}}
	for _, opt := range opts {
		opt(&sweep)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var result CleanStaleResult
	dirs, err := scanJobDirs(stagingRoot, false)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingRoot, Error: err})
		return result
	}
	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if _, protected := sweep.skip[dir.JobID]; protected || !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale job directory", "staging_cleanup_failed",
				zap.String("path", dir.Path),
				zap.Error(err),
				zap.String(logging.FieldErrorHint, "check staging_dir permissions"),
				zap.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("removed stale job directory",
			zap.String("path", dir.Path),
			zap.Duration("age", time.Since(dir.ModTime)),
			zap.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

// ListDirectories returns the job directories under stagingRoot with their
// total file size. A missing root yields an empty list.
func ListDirectories(stagingRoot string) ([]DirInfo, error) {
	return scanJobDirs(stagingRoot, true)
}

func scanJobDirs(root string, withSize bool) ([]DirInfo, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		id, ok := parseJobDir(entry)
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dir := DirInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(root, entry.Name()),
			JobID:   id,
			ModTime: info.ModTime(),
		}
		if withSize {
			dir.Size = treeSize(dir.Path)
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func parseJobDir(entry fs.DirEntry) (int64, bool) {
	if !entry.IsDir() {
		return 0, false
	}
	digits, ok := strings.CutPrefix(entry.Name(), jobDirPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// treeSize sums regular file sizes below path, skipping unreadable entries.
func treeSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
