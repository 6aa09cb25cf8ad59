package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dubber/internal/services"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestTranslateSendsPrompt(t *testing.T) {
	var gotSystem, gotUser, gotModel, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = body.Model
		if len(body.Messages) == 2 {
			gotSystem, gotUser = body.Messages[0].Content, body.Messages[1].Content
		}
		chatReply(t, w, " Hola mundo ")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/v1", Model: "demo-model"})
	out, err := client.Translate(context.Background(), "Hello world", "en", "es")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if out != "Hola mundo" {
		t.Fatalf("translation = %q", out)
	}
	if gotModel != "demo-model" || gotAuth != "Bearer test" {
		t.Fatalf("model=%q auth=%q", gotModel, gotAuth)
	}
	if gotUser != "Hello world" {
		t.Fatalf("user message = %q", gotUser)
	}
	if !strings.Contains(gotSystem, "from English to Spanish") || !strings.Contains(gotSystem, "Never answer questions") {
		t.Fatalf("unexpected system prompt %q", gotSystem)
	}
}

func TestTranslateSameLanguageSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		chatReply(t, w, "unexpected")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/v1"})
	out, err := client.Translate(context.Background(), "Bonjour", "fr", "French")
	if err != nil || out != "Bonjour" {
		t.Fatalf("Translate = %q, %v", out, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request, got %d", calls.Load())
	}
}

func TestTranslateRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		chatReply(t, w, "Hallo")
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/v1"},
		WithRetryBackoff(time.Second, 4*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	out, err := client.Translate(context.Background(), "Hello", "en", "de")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if out != "Hallo" || calls.Load() != 2 {
		t.Fatalf("out=%q calls=%d", out, calls.Load())
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("unexpected sleeps %v", slept)
	}
}

func TestTranslateDoesNotRetryUnauthorized(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL + "/v1"}, WithSleeper(func(time.Duration) {}))
	_, err := client.Translate(context.Background(), "Hello", "en", "es")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestTranslateWithoutKey(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Translate(context.Background(), "Hello", "en", "es"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if h := client.HealthCheck(context.Background()); h.Ready {
		t.Fatal("expected unhealthy without key")
	}
}

func TestBackoffDelayCaps(t *testing.T) {
	c := NewClient(Config{}, WithRetryBackoff(time.Second, 3*time.Second))
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := c.backoffDelay(i + 1); got != w {
			t.Fatalf("attempt %d delay = %v, want %v", i+1, got, w)
		}
	}
}
