package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"treegift/internal/config"
)

const userAgent = "treegift/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventSubmissionCompleted Event = "submission_completed"
	EventSubmissionFailed    Event = "submission_failed"
	EventIngestionFailed     Event = "ingestion_failed"
	EventError               Event = "error"
	EventTest                Event = "test"
)

// Payload carries event fields. Known keys: requestID, user, trees,
// recipients, step, kind, error, file, context.
type Payload map[string]any

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case error:
		return strings.TrimSpace(t.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
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
		settings: cfg.Notifications,
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
	settings config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil {
		return nil
	}
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventSubmissionCompleted:
		return n.settings.Submissions
	case EventSubmissionFailed:
		return n.settings.Submissions || n.settings.Errors
	case EventIngestionFailed:
		return n.settings.Ingestion
	case EventError:
		return n.settings.Errors
	default:
		return true
	}
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventSubmissionCompleted:
		subject := payload.str("user")
		if subject == "" {
			subject = payload.str("requestID")
		}
		body := fmt.Sprintf("🌳 Request saved for %s", subject)
		if trees := payload.str("trees"); trees != "" {
			body += fmt.Sprintf(": %s trees", trees)
			if recipients := payload.str("recipients"); recipients != "" {
				body += fmt.Sprintf(", %s recipients", recipients)
			}
		}
		return message{
			title: "treegift - Request Saved",
			body:  body,
			tags:  []string{"treegift", "submission", "completed"},
		}, true
	case EventSubmissionFailed:
		var b strings.Builder
		b.WriteString("❌ Submission failed")
		if step := payload.str("step"); step != "" {
			b.WriteString(" at ")
			b.WriteString(step)
		}
		if id := payload.str("requestID"); id != "" {
			b.WriteString(" (")
			b.WriteString(id)
			b.WriteString(")")
		}
		b.WriteString(": ")
		if errText := payload.str("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		tags := []string{"treegift", "submission", "failed"}
		if kind := payload.str("kind"); kind != "" {
			tags = append(tags, kind)
		}
		return message{
			title:    "treegift - Submission Failed",
			body:     b.String(),
			tags:     tags,
			priority: "high",
		}, true
	case EventIngestionFailed:
		file := payload.str("file")
		if file == "" {
			file = "recipient file"
		}
		return message{
			title: "treegift - Import Rejected",
			body:  fmt.Sprintf("📄 Could not import %s: %s", file, payload.str("error")),
			tags:  []string{"treegift", "ingest", "failed"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := payload.str("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := payload.str("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "treegift - Error",
			body:     b.String(),
			tags:     []string{"treegift", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "treegift - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"treegift", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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
