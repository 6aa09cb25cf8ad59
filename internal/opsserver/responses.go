package opsserver

import (
	"encoding/json"
	"net/http"
	"time"

	"dubber/internal/dubbing"
	"dubber/internal/jobs"
	"dubber/internal/stage"
	"dubber/internal/workflow"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeErrorDetail(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Detail: detail})
}

// SubmitRequest is the body of POST /api/v1/jobs.
type SubmitRequest struct {
	InputPath      string                `json:"input_path"`
	TargetLanguage string                `json:"target_language"`
	VoiceSettings  dubbing.VoiceSettings `json:"voice_settings,omitempty"`
}

// SubmitResponse carries the id assigned to a new job.
type SubmitResponse struct {
	ID        int64  `json:"id"`
	RequestID string `json:"request_id,omitempty"`
}

// CancelResponse reports whether a cancel request was recorded.
type CancelResponse struct {
	ID        int64 `json:"id"`
	Requested bool  `json:"requested"`
}

// JobResponse is the wire form of a job snapshot.
type JobResponse struct {
	ID              int64           `json:"id"`
	InputPath       string          `json:"input_path"`
	MediaKind       string          `json:"media_kind"`
	TargetLanguage  string          `json:"target_language"`
	Stage           string          `json:"stage"`
	Progress        float64         `json:"progress"`
	Message         string          `json:"message,omitempty"`
	ResultPath      string          `json:"result_path,omitempty"`
	Error           string          `json:"error,omitempty"`
	Kind            string          `json:"kind,omitempty"`
	CancelRequested bool            `json:"cancel_requested,omitempty"`
	RequestID       string          `json:"request_id,omitempty"`
	Result          *dubbing.Result `json:"result,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// JobListResponse wraps a list of jobs.
type JobListResponse struct {
	Items []JobResponse `json:"items"`
}

// FromStatus converts a job snapshot to its wire form.
func FromStatus(s jobs.Status) JobResponse {
	return JobResponse{
		ID:              s.ID,
		InputPath:       s.InputPath,
		MediaKind:       string(s.MediaKind),
		TargetLanguage:  s.TargetLanguage,
		Stage:           string(s.Stage),
		Progress:        s.Progress,
		Message:         s.Message,
		ResultPath:      s.ResultPath,
		Error:           s.Error,
		Kind:            string(s.Kind),
		CancelRequested: s.CancelRequested,
		RequestID:       s.RequestID,
		Result:          s.Result,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// HealthCheck is one named readiness check.
type HealthCheck struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// ReadyResponse is the body of /readyz.
type ReadyResponse struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

// ActiveJobResponse names a job a worker lane owns.
type ActiveJobResponse struct {
	ID     int64  `json:"id"`
	Worker string `json:"worker"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Running       bool                `json:"running"`
	Workers       int                 `json:"workers"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Active        []ActiveJobResponse `json:"active"`
	LastError     string              `json:"last_error,omitempty"`
	LastJobID     int64               `json:"last_job_id,omitempty"`
	Queue         map[string]int      `json:"queue"`
	Stages        []HealthCheck       `json:"stages"`
}

func fromHealth(h stage.Health) HealthCheck {
	return HealthCheck{Name: h.Name, Ready: h.Ready, Detail: h.Detail}
}

// FromStatusSummary converts workflow diagnostics to their wire form.
func FromStatusSummary(summary workflow.StatusSummary, uptime time.Duration) StatusResponse {
	resp := StatusResponse{
		Running:       summary.Running,
		Workers:       summary.Workers,
		UptimeSeconds: int64(uptime.Seconds()),
		LastError:     summary.LastError,
		Active:        make([]ActiveJobResponse, 0, len(summary.Active)),
		Queue:         make(map[string]int, len(summary.QueueStats)),
		Stages:        make([]HealthCheck, 0, len(summary.StageHealth)),
	}
	if summary.LastJob != nil {
		resp.LastJobID = summary.LastJob.ID
	}
	for _, a := range summary.Active {
		resp.Active = append(resp.Active, ActiveJobResponse{ID: a.ID, Worker: a.Worker})
	}
	for st, n := range summary.QueueStats {
		resp.Queue[string(st)] = n
	}
	for _, h := range summary.StageHealth {
		resp.Stages = append(resp.Stages, fromHealth(h))
	}
	return resp
}
