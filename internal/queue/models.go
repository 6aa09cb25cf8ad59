package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dubber/internal/dubbing"
)

// ErrTerminal is returned when a mutation targets a job that already
// reached done or failed.
var ErrTerminal = errors.New("job is terminal")

// ErrNotFound is returned when a mutation targets an unknown job id.
var ErrNotFound = errors.New("job not found")

// ErrStageRegression is returned when a progress update would move a job
// backwards through the pipeline.
var ErrStageRegression = errors.New("stage regression")

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Failed     int
	Done       int
}

// Job represents a dubbing job persisted in SQLite.
type Job struct {
	ID                int64
	InputPath         string
	MediaKind         dubbing.MediaKind
	TargetLanguage    string
	VoiceSettingsJSON string
	Stage             dubbing.Stage
	Progress          float64
	ProgressMessage   string
	CancelRequested   bool
	ResultJSON        string
	FailureJSON       string
	RequestID         string
	Attempts          int
	LastHeartbeat     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsTerminal reports whether the job finished.
func (j Job) IsTerminal() bool {
	return j.Stage.IsTerminal()
}

// IsProcessing reports whether a worker currently owns the job.
func (j Job) IsProcessing() bool {
	return j.Stage.IsActive()
}

// VoiceSettings decodes the stored settings. An empty column yields an
// empty map.
func (j Job) VoiceSettings() (dubbing.VoiceSettings, error) {
	settings := dubbing.VoiceSettings{}
	if j.VoiceSettingsJSON == "" {
		return settings, nil
	}
	if err := json.Unmarshal([]byte(j.VoiceSettingsJSON), &settings); err != nil {
		return nil, fmt.Errorf("decode voice settings: %w", err)
	}
	return settings, nil
}

// Result decodes the stored result. It returns nil when the job has none.
func (j Job) Result() (*dubbing.Result, error) {
	if j.ResultJSON == "" {
		return nil, nil
	}
	var result dubbing.Result
	if err := json.Unmarshal([]byte(j.ResultJSON), &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}

// Failure decodes the stored failure record. It returns nil when the job
// has none.
func (j Job) Failure() (*dubbing.Failure, error) {
	if j.FailureJSON == "" {
		return nil, nil
	}
	var failure dubbing.Failure
	if err := json.Unmarshal([]byte(j.FailureJSON), &failure); err != nil {
		return nil, fmt.Errorf("decode failure: %w", err)
	}
	return &failure, nil
}
