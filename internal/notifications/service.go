package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"dubber/internal/config"
)

const userAgent = "dubber/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobDegraded  Event = "job_degraded"
	EventJobFailed    Event = "job_failed"
	EventJobCancelled Event = "job_cancelled"
	EventTest         Event = "test"
)

// Payload carries event fields. Keys are event specific: "file", "language",
// "output", "stage", "kind", "error", "degradations".
type Payload map[string]string

// Service publishes notification events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	file := displayName(payload["file"])
	language := payload["language"]
	switch event {
	case EventJobCompleted:
		body := fmt.Sprintf("Dubbed %s into %s", file, language)
		if out := strings.TrimSpace(payload["output"]); out != "" {
			body += "\nOutput: " + out
		}
		return message{
			title: "dubber - Complete",
			body:  body,
			tags:  []string{"dubber", "job", "completed"},
		}, true
	case EventJobDegraded:
		body := fmt.Sprintf("Dubbed %s into %s with fallbacks", file, language)
		if d := strings.TrimSpace(payload["degradations"]); d != "" {
			body += "\nDegraded: " + d
		}
		return message{
			title: "dubber - Complete (degraded)",
			body:  body,
			tags:  []string{"dubber", "job", "degraded"},
		}, true
	case EventJobFailed:
		var b strings.Builder
		fmt.Fprintf(&b, "Failed to dub %s", file)
		if stage := strings.TrimSpace(payload["stage"]); stage != "" {
			fmt.Fprintf(&b, " during %s", stage)
		}
		if kind := strings.TrimSpace(payload["kind"]); kind != "" {
			fmt.Fprintf(&b, " (%s)", kind)
		}
		if errText := strings.TrimSpace(payload["error"]); errText != "" {
			b.WriteString(": ")
			b.WriteString(errText)
		}
		return message{
			title:    "dubber - Failed",
			body:     b.String(),
			tags:     []string{"dubber", "job", "failed"},
			priority: "high",
		}, true
	case EventJobCancelled:
		return message{
			title:    "dubber - Cancelled",
			body:     fmt.Sprintf("Cancelled: %s", file),
			tags:     []string{"dubber", "job", "cancelled"},
			priority: "low",
		}, true
	case EventTest:
		return message{
			title:    "dubber - Test",
			body:     "Notification system test",
			tags:     []string{"dubber", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func displayName(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "unknown input"
	}
	return filepath.Base(path)
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
