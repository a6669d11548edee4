package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyreel/internal/config"
)

const userAgent = "storyreel/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventExportQueued  Event = "export_queued"
	EventDaemonStarted Event = "daemon_started"
	EventDaemonStopped Event = "daemon_stopped"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

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
	switch event {
	case EventExportQueued:
		name := str(payload, "name")
		if name == "" {
			name = str(payload, "id")
		}
		body := fmt.Sprintf("Export queued: %s (%d scenes, %s)", name, num(payload, "scenes"), durationText(payload))
		if clips := num(payload, "narrationClips"); clips > 0 {
			body = fmt.Sprintf("%s\nNarration clips: %d", body, clips)
		}
		return message{
			title: "storyreel - Export Queued",
			body:  body,
			tags:  []string{"storyreel", "export", "queued"},
		}, true
	case EventDaemonStarted:
		return message{
			title:    "storyreel - Daemon Started",
			body:     fmt.Sprintf("Preview API listening on %s", str(payload, "address")),
			tags:     []string{"storyreel", "daemon", "started"},
			priority: "low",
		}, true
	case EventDaemonStopped:
		return message{
			title:    "storyreel - Daemon Stopped",
			body:     fmt.Sprintf("Preview daemon stopped with %d open sessions", num(payload, "sessions")),
			tags:     []string{"storyreel", "daemon", "stopped"},
			priority: "low",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("Error")
		if label := str(payload, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if err, ok := payload["error"].(error); ok && err != nil {
			b.WriteString(strings.TrimSpace(err.Error()))
		} else if text := str(payload, "error"); text != "" {
			b.WriteString(text)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "storyreel - Error",
			body:     b.String(),
			tags:     []string{"storyreel", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "storyreel - Test",
			body:     "Notification system test",
			tags:     []string{"storyreel", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func str(p Payload, key string) string {
	if v, ok := p[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func num(p Payload, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func durationText(p Payload) string {
	if v, ok := p["durationSeconds"].(float64); ok && v > 0 {
		return (time.Duration(v * float64(time.Second))).Round(100 * time.Millisecond).String()
	}
	return "0s"
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

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
