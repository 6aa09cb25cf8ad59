package main

import (
	"context"
	"errors"

	"dubber/internal/dubbing"
	"dubber/internal/jobs"
	"dubber/internal/opsserver"
)

// jobAPI is the job surface shared by the daemon and direct queue access.
// Get returns nil for unknown ids.
type jobAPI interface {
	Submit(ctx context.Context, path, target string, settings dubbing.VoiceSettings) (int64, error)
	Get(ctx context.Context, id int64) (*opsserver.JobResponse, error)
	Cancel(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, stages []string) ([]opsserver.JobResponse, error)
}

// --- HTTP adapter ---

type jobHTTPAdapter struct {
	client *opsserver.Client
}

func (a *jobHTTPAdapter) Submit(ctx context.Context, path, target string, settings dubbing.VoiceSettings) (int64, error) {
	return a.client.Submit(ctx, path, target, settings)
}

func (a *jobHTTPAdapter) Get(ctx context.Context, id int64) (*opsserver.JobResponse, error) {
	job, err := a.client.Get(ctx, id)
	if errors.Is(err, opsserver.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (a *jobHTTPAdapter) Cancel(ctx context.Context, id int64) (bool, error) {
	return a.client.Cancel(ctx, id)
}

func (a *jobHTTPAdapter) List(ctx context.Context, stages []string) ([]opsserver.JobResponse, error) {
	return a.client.List(ctx, stages...)
}

// --- Store adapter ---

type jobStoreAdapter struct {
	svc *jobs.Service
}

func (a *jobStoreAdapter) Submit(ctx context.Context, path, target string, settings dubbing.VoiceSettings) (int64, error) {
	return a.svc.Submit(ctx, path, target, settings)
}

func (a *jobStoreAdapter) Get(ctx context.Context, id int64) (*opsserver.JobResponse, error) {
	status, err := a.svc.GetStatus(ctx, id)
	if errors.Is(err, jobs.ErrUnknownJob) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	resp := opsserver.FromStatus(status)
	return &resp, nil
}

func (a *jobStoreAdapter) Cancel(ctx context.Context, id int64) (bool, error) {
	return a.svc.Cancel(ctx, id)
}

func (a *jobStoreAdapter) List(ctx context.Context, stages []string) ([]opsserver.JobResponse, error) {
	parsed, err := parseStages(stages)
	if err != nil {
		return nil, err
	}
	items, err := a.svc.List(ctx, parsed...)
	if err != nil {
		return nil, err
	}
	out := make([]opsserver.JobResponse, 0, len(items))
	for _, item := range items {
		out = append(out, opsserver.FromStatus(item))
	}
	return out, nil
}
