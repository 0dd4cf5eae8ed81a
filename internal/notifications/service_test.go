package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"isoconvert/internal/config"
	"isoconvert/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRunStarted, notifications.Payload{"count": 2}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title, body, tags, priority string
}

func newServer(t *testing.T, status int) (*httptest.Server, chan captured) {
	t.Helper()
	requests := make(chan captured, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "run started",
			event:       notifications.EventRunStarted,
			payload:     notifications.Payload{"count": 3},
			expectTitle: "isoconvert - Run Started",
			expectBody:  "Converting 3 disc images",
			expectTags:  "isoconvert,run,started",
		},
		{
			name:        "run completed",
			event:       notifications.EventRunCompleted,
			payload:     notifications.Payload{"succeeded": 3, "failed": 0, "duration": 90*time.Minute + 400*time.Millisecond},
			expectTitle: "isoconvert - Run Complete",
			expectBody:  "Converted 3 disc images in 1h30m0s",
			expectTags:  "isoconvert,run,completed",
		},
		{
			name:           "run completed with errors",
			event:          notifications.EventRunCompleted,
			payload:        notifications.Payload{"succeeded": 1, "failed": 2},
			expectTitle:    "isoconvert - Run Complete (with errors)",
			expectBody:     "1 succeeded, 2 failed in 0s",
			expectTags:     "isoconvert,run,warning",
			expectPriority: "high",
		},
		{
			name:           "item failed",
			event:          notifications.EventItemFailed,
			payload:        notifications.Payload{"item": "/discs/a.iso", "stage": "scan", "error": "exit code 2"},
			expectTitle:    "isoconvert - Error",
			expectBody:     "Error during scan for /discs/a.iso: exit code 2",
			expectTags:     "isoconvert,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, requests := newServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			got := <-requests
			if got.title != tc.expectTitle || got.body != tc.expectBody || got.tags != tc.expectTags || got.priority != tc.expectPriority {
				t.Fatalf("unexpected request %+v", got)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestUnknownEventIsIgnored(t *testing.T) {
	srv, requests := newServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	if err := notifications.NewService(&cfg).Publish(context.Background(), notifications.Event("bogus"), nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case got := <-requests:
		t.Fatalf("unexpected request %+v", got)
	default:
	}
}
