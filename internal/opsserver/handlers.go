package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"dubber/internal/dubbing"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/services"
)

// JobService is the job handle the API fronts.
type JobService interface {
	Submit(ctx context.Context, path, targetLanguage string, settings dubbing.VoiceSettings) (int64, error)
	GetStatus(ctx context.Context, id int64) (jobs.Status, error)
	Cancel(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, stages ...dubbing.Stage) ([]jobs.Status, error)
}

const maxSubmitBody = 1 << 20

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make([]HealthCheck, 0, 8)
	ready := true

	if s.opts.Database != nil {
		check := HealthCheck{Name: "queue_db", Ready: true}
		health, err := s.opts.Database.CheckHealth(ctx)
		switch {
		case err != nil:
			check.Ready = false
			check.Detail = err.Error()
		case !health.DatabaseReadable || !health.TableExists || len(health.MissingColumns) > 0:
			check.Ready = false
			check.Detail = "schema incomplete"
			if health.Error != "" {
				check.Detail = health.Error
			}
		}
		ready = ready && check.Ready
		checks = append(checks, check)
	}

	if s.opts.Status != nil {
		summary := s.opts.Status.Status(ctx)
		workers := HealthCheck{Name: "workflow", Ready: summary.Running}
		if !summary.Running {
			workers.Detail = "workflow manager not running"
		}
		checks = append(checks, workers)
		for _, h := range summary.StageHealth {
			checks = append(checks, fromHealth(h))
		}
		ready = ready && summary.Ready()
	}

	resp := ReadyResponse{Status: "ready", Checks: checks}
	code := http.StatusOK
	if !ready {
		resp.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.opts.Status == nil {
		writeError(w, http.StatusServiceUnavailable, "workflow unavailable")
		return
	}
	summary := s.opts.Status.Status(r.Context())
	writeJSON(w, http.StatusOK, FromStatusSummary(summary, time.Since(s.started)))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.opts.Jobs == nil {
		writeJSON(w, http.StatusOK, JobListResponse{Items: []JobResponse{}})
		return
	}
	var stages []dubbing.Stage
	for _, value := range r.URL.Query()["stage"] {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			st, ok := dubbing.ParseStage(part)
			if !ok {
				writeErrorDetail(w, http.StatusBadRequest, "invalid stage", part)
				return
			}
			stages = append(stages, st)
		}
	}
	items, err := s.opts.Jobs.List(r.Context(), stages...)
	if err != nil {
		s.internalError(w, r, "list jobs", err)
		return
	}
	resp := JobListResponse{Items: make([]JobResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, FromStatus(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.opts.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job service unavailable")
		return
	}
	var req SubmitRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	id, err := s.opts.Jobs.Submit(r.Context(), req.InputPath, req.TargetLanguage, req.VoiceSettings)
	if err != nil {
		if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrUnsupportedFormat) {
			writeErrorDetail(w, http.StatusBadRequest, "job rejected", err.Error())
			return
		}
		s.internalError(w, r, "submit job", err)
		return
	}
	if s.opts.Notifier != nil {
		s.opts.Notifier.Notify()
	}
	rid, _ := services.RequestIDFromContext(r.Context())
	writeJSON(w, http.StatusCreated, SubmitResponse{ID: id, RequestID: rid})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}
	if s.opts.Jobs == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	status, err := s.opts.Jobs.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrUnknownJob) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.internalError(w, r, "get job", err)
		return
	}
	writeJSON(w, http.StatusOK, FromStatus(status))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}
	if s.opts.Jobs == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	requested, err := s.opts.Jobs.Cancel(r.Context(), id)
	if err != nil {
		s.internalError(w, r, "cancel job", err)
		return
	}
	code := http.StatusAccepted
	if !requested {
		code = http.StatusConflict
	}
	writeJSON(w, code, CancelResponse{ID: id, Requested: requested})
}

func parseJobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.ErrorWithContext(s.logger, op+" failed", "ops_request_failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeErrorDetail(w, http.StatusInternalServerError, op+" failed", err.Error())
}
