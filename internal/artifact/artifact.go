package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"dubber/internal/logging"
)

// Kind identifies what an artifact holds within a run.
type Kind string

const (
	KindSourceInput      Kind = "source_input"
	KindExtractedAudio   Kind = "extracted_audio"
	KindVocals           Kind = "vocals"
	KindBackground       Kind = "background"
	KindSynthesizedVoice Kind = "synthesized_voice"
	KindMixedAudio       Kind = "mixed_audio"
	// KindRemuxedVideo is the synced video waiting in the job directory
	// until finalize publishes it.
	KindRemuxedVideo Kind = "remuxed_video"
	KindFinalOutput      Kind = "final_output"
	// KindScratch is a directory an adapter fills with files the run does
	// not track individually.
	KindScratch Kind = "scratch"
)

// Disposition decides whether Cleanup deletes an artifact.
type Disposition int

const (
	// Temporary artifacts are deleted by Cleanup.
	Temporary Disposition = iota
	// Keep artifacts survive Cleanup.
	Keep
)

func (d Disposition) String() string {
	if d == Keep {
		return "keep"
	}
	return "temporary"
}

// ErrDuplicateFinalOutput is returned when a second FinalOutput is registered.
var ErrDuplicateFinalOutput = errors.New("job already has a final output")

// Artifact is a file produced or consumed during a run.
type Artifact struct {
	Path        string
	Kind        Kind
	Disposition Disposition
	Dir         bool
}

// Lifecycle tracks the artifacts of a single job. Paths it allocates live in
// a per-job directory under the staging root so concurrent jobs never
// collide.
type Lifecycle struct {
	mu        sync.Mutex
	jobID     int64
	dir       string
	keepAll   bool
	artifacts []Artifact
	logger    *zap.Logger
	remove    func(string) error
	removeAll func(string) error
}

// Option customizes a Lifecycle.
type Option func(*Lifecycle)

// WithKeepAll retains every artifact, including Temporary ones. Useful when
// debugging a pipeline run.
func WithKeepAll(keep bool) Option {
	return func(l *Lifecycle) { l.keepAll = keep }
}

// JobDir returns the staging directory reserved for jobID.
func JobDir(stagingRoot string, jobID int64) string {
	return filepath.Join(stagingRoot, jobDirPrefix+strconv.FormatInt(jobID, 10))
}

// New creates the job directory and returns a Lifecycle bound to it.
func New(stagingRoot string, jobID int64, logger *zap.Logger, opts ...Option) (*Lifecycle, error) {
	stagingRoot = strings.TrimSpace(stagingRoot)
	if stagingRoot == "" {
		return nil, errors.New("artifact: staging root is required")
	}
	dir := JobDir(stagingRoot, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job directory: %w", err)
	}
	l := &Lifecycle{
		jobID:     jobID,
		dir:       dir,
		logger:    logging.NewComponentLogger(logger, "artifacts"),
		remove:    os.Remove,
		removeAll: os.RemoveAll,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dir returns the job directory.
func (l *Lifecycle) Dir() string {
	return l.dir
}

// Path allocates a path named name inside the job directory and registers it
// with the given disposition. The file itself is not created.
func (l *Lifecycle) Path(kind Kind, name string, disposition Disposition) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("artifact: invalid name for %s", kind)
	}
	path := filepath.Join(l.dir, name)
	if _, err := l.Track(path, kind, disposition); err != nil {
		return "", err
	}
	return path, nil
}

// ScratchDir creates a Temporary directory named name inside the job
// directory. Cleanup removes it with everything it contains.
func (l *Lifecycle) ScratchDir(name string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", errors.New("artifact: invalid scratch directory name")
	}
	path := filepath.Join(l.dir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.artifacts {
		if existing.Path == path {
			return path, nil
		}
	}
	l.artifacts = append(l.artifacts, Artifact{Path: path, Kind: KindScratch, Disposition: Temporary, Dir: true})
	return path, nil
}

// Track registers a file produced outside the job directory, such as an
// adapter output or the final deliverable. FinalOutput is always Keep and a
// job may hold at most one.
func (l *Lifecycle) Track(path string, kind Kind, disposition Disposition) (Artifact, error) {
	if kind == KindFinalOutput {
		disposition = Keep
	}
	a := Artifact{Path: path, Kind: kind, Disposition: disposition}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.artifacts {
		if kind == KindFinalOutput && existing.Kind == KindFinalOutput {
			return Artifact{}, ErrDuplicateFinalOutput
		}
		if existing.Path == path {
			return existing, nil
		}
	}
	l.artifacts = append(l.artifacts, a)
	return a, nil
}

// Artifacts returns a snapshot of everything registered so far.
func (l *Lifecycle) Artifacts() []Artifact {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Artifact(nil), l.artifacts...)
}

// Lookup returns the first artifact of the given kind.
func (l *Lifecycle) Lookup(kind Kind) (Artifact, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.artifacts {
		if a.Kind == kind {
			return a, true
		}
	}
	return Artifact{}, false
}

// CleanupReport summarizes a Cleanup pass.
type CleanupReport struct {
	Removed  []string
	Warnings int
}

// Cleanup deletes every Temporary artifact and then the job directory when
// it is empty. Missing files are ignored. Other deletion errors are logged
// as cleanup warnings and never returned.
func (l *Lifecycle) Cleanup(ctx context.Context) CleanupReport {
	logger := logging.WithContext(ctx, l.logger)
	report := CleanupReport{}
	if l.keepAll {
		logger.Debug("keeping intermediate artifacts", zap.String("dir", l.dir))
		return report
	}

	l.mu.Lock()
	artifacts := append([]Artifact(nil), l.artifacts...)
	l.mu.Unlock()

	for _, a := range artifacts {
		if a.Disposition != Temporary {
			continue
		}
		remove := l.remove
		if a.Dir {
			remove = l.removeAll
		}
		if err := remove(a.Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			report.Warnings++
			logging.WarnWithContext(logger, "failed to remove temporary artifact", "cleanup_warning",
				zap.String("path", a.Path),
				zap.String("kind", string(a.Kind)),
				zap.Error(err),
				zap.String(logging.FieldErrorHint, "check staging_dir permissions"),
				zap.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		report.Removed = append(report.Removed, a.Path)
	}

	if err := l.remove(l.dir); err != nil && !errors.Is(err, os.ErrNotExist) && !isNotEmpty(err) {
		report.Warnings++
		logging.WarnWithContext(logger, "failed to remove job directory", "cleanup_warning",
			zap.String("path", l.dir),
			zap.Error(err),
			zap.String(logging.FieldErrorHint, "check staging_dir permissions"),
			zap.String(logging.FieldImpact, "empty job directory left behind"),
		)
	}

	logger.Debug("artifact cleanup complete",
		zap.Int("removed", len(report.Removed)),
		zap.Int("warnings", report.Warnings),
	)
	return report
}

func isNotEmpty(err error) bool {
	if errors.Is(err, os.ErrExist) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "directory not empty") || strings.Contains(msg, "not empty")
}
