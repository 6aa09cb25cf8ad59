package opsserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dubber/internal/dubbing"
)

// ErrNotFound is returned by Client.Get for unknown job ids.
var ErrNotFound = errors.New("job not found")

// Client talks to a running daemon's ops API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the listener at bind ("host:port" or a full
// URL).
func NewClient(bind, token string, timeout time.Duration) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: base, token: token, http: &http.Client{Timeout: timeout}}
}

// Ping checks liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
}

// Ready fetches readiness. A not-ready daemon is not an error.
func (c *Client) Ready(ctx context.Context) (ReadyResponse, error) {
	var out ReadyResponse
	err := c.do(ctx, http.MethodGet, "/readyz", nil, &out, http.StatusOK, http.StatusServiceUnavailable)
	return out, err
}

// Status fetches workflow diagnostics.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &out, http.StatusOK)
	return out, err
}

// Submit enqueues a job.
func (c *Client) Submit(ctx context.Context, path, target string, settings dubbing.VoiceSettings) (int64, error) {
	var out SubmitResponse
	req := SubmitRequest{InputPath: path, TargetLanguage: target, VoiceSettings: settings}
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", req, &out, http.StatusCreated); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Get fetches one job.
func (c *Client) Get(ctx context.Context, id int64) (JobResponse, error) {
	var out JobResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+strconv.FormatInt(id, 10), nil, &out, http.StatusOK)
	return out, err
}

// Cancel requests cancellation. It reports false for unknown or finished
// jobs.
func (c *Client) Cancel(ctx context.Context, id int64) (bool, error) {
	var out CancelResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/jobs/"+strconv.FormatInt(id, 10)+"/cancel", nil, &out,
		http.StatusAccepted, http.StatusConflict)
	return out.Requested, err
}

// List fetches jobs, optionally filtered to stages.
func (c *Client) List(ctx context.Context, stages ...string) ([]JobResponse, error) {
	path := "/api/v1/jobs"
	if len(stages) > 0 {
		path += "?stage=" + url.QueryEscape(strings.Join(stages, ","))
	}
	var out JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, accept ...int) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ops request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	for _, code := range accept {
		if resp.StatusCode == code {
			if out == nil || len(data) == 0 {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	var apiErr ErrorResponse
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		if apiErr.Detail != "" {
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Detail)
		}
		return errors.New(apiErr.Error)
	}
	return fmt.Errorf("ops request %s %s: unexpected status %d", method, path, resp.StatusCode)
}
