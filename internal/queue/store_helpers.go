package queue

import (
	"database/sql"
	"errors"
	"time"

	"dubber/internal/dubbing"
)

const jobColumns = "id, input_path, media_kind, target_language, voice_settings_json, stage, progress, progress_message, cancel_requested, result_json, failure_json, request_id, attempts, last_heartbeat, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job              Job
		mediaKind        string
		stage            string
		voiceSettings    sql.NullString
		progressMessage  sql.NullString
		cancelRequested  int64
		resultJSON       sql.NullString
		failureJSON      sql.NullString
		requestID        sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       string
		updatedRaw       string
	)

	if err := scanner.Scan(
		&job.ID,
		&job.InputPath,
		&mediaKind,
		&job.TargetLanguage,
		&voiceSettings,
		&stage,
		&job.Progress,
		&progressMessage,
		&cancelRequested,
		&resultJSON,
		&failureJSON,
		&requestID,
		&job.Attempts,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job.MediaKind = dubbing.MediaKind(mediaKind)
	job.Stage = dubbing.Stage(stage)
	job.VoiceSettingsJSON = voiceSettings.String
	job.ProgressMessage = progressMessage.String
	job.CancelRequested = cancelRequested != 0
	job.ResultJSON = resultJSON.String
	job.FailureJSON = failureJSON.String
	job.RequestID = requestID.String

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// timeLayout is fixed width so stored timestamps compare lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nowString() string {
	return formatTime(time.Now())
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func stageArgs(stages []dubbing.Stage) []any {
	args := make([]any, 0, len(stages))
	for _, s := range stages {
		args = append(args, string(s))
	}
	return args
}

func activeStages() []dubbing.Stage {
	var out []dubbing.Stage
	for _, s := range dubbing.AllStages() {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}
