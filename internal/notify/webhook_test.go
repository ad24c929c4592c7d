package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleNotification() model.Notification {
	return model.Notification{
		DeviceID:   1,
		DeviceName: "edge-1",
		TargetHost: "8.8.8.8",
		Type:       model.AlertTypeWatchTarget,
		Severity:   model.AlertSeverityWarning,
		Message:    "watch target 8.8.8.8 is down",
		Timestamp:  time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
}

func TestWebhookPostsJSON(t *testing.T) {
	var received model.Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	webhook := NewWebhook(server.URL, time.Second, testLogger())
	if err := webhook.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if received.DeviceName != "edge-1" || received.TargetHost != "8.8.8.8" {
		t.Fatalf("payload = %+v", received)
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	webhook := NewWebhook(server.URL, time.Second, testLogger())
	if err := webhook.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatalf("expected error on 500 response")
	}
}
