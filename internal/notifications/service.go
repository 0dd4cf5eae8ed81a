package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"isoconvert/internal/config"
)

const userAgent = "isoconvert/0.1"

// Event names a notification type.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventItemFailed   Event = "item_failed"
	EventTest         Event = "test"
)

// Payload carries event fields. Recognised keys per event:
//   - run_started: count
//   - run_completed: succeeded, failed, duration
//   - item_failed: item, stage, error
type Payload map[string]any

// Service defines the notification surface exposed to the pipeline.
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
	case EventRunStarted:
		return message{
			title: "isoconvert - Run Started",
			body:  fmt.Sprintf("Converting %d disc images", intField(payload, "count")),
			tags:  []string{"isoconvert", "run", "started"},
		}, true
	case EventRunCompleted:
		succeeded := intField(payload, "succeeded")
		failed := intField(payload, "failed")
		duration := durationText(payload["duration"])
		if failed == 0 {
			return message{
				title: "isoconvert - Run Complete",
				body:  fmt.Sprintf("Converted %d disc images in %s", succeeded, duration),
				tags:  []string{"isoconvert", "run", "completed"},
			}, true
		}
		return message{
			title:    "isoconvert - Run Complete (with errors)",
			body:     fmt.Sprintf("%d succeeded, %d failed in %s", succeeded, failed, duration),
			tags:     []string{"isoconvert", "run", "warning"},
			priority: "high",
		}, true
	case EventItemFailed:
		var b strings.Builder
		b.WriteString("Error")
		if stage := stringField(payload, "stage"); stage != "" {
			b.WriteString(" during ")
			b.WriteString(stage)
		}
		if item := stringField(payload, "item"); item != "" {
			b.WriteString(" for ")
			b.WriteString(item)
		}
		b.WriteString(": ")
		if detail := stringField(payload, "error"); detail != "" {
			b.WriteString(detail)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "isoconvert - Error",
			body:     b.String(),
			tags:     []string{"isoconvert", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "isoconvert - Test",
			body:     "Notification system test",
			tags:     []string{"isoconvert", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
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

func stringField(p Payload, key string) string {
	if v, ok := p[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func intField(p Payload, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func durationText(v any) string {
	d, _ := v.(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
