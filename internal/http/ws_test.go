package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mikro-fleet/monitor/internal/model"
)

func TestHubBroadcastsToSubscriber(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	notification := model.Notification{
		DeviceID:   1,
		DeviceName: "edge-1",
		Type:       model.AlertTypeDeviceStatus,
		Severity:   model.AlertSeverityCritical,
		Message:    "device edge-1 is unreachable",
		Timestamp:  time.Now().UTC(),
	}
	// The subscriber registers during the upgrade handshake; poll until
	// the broadcast reaches it.
	received := make(chan model.Notification, 1)
	go func() {
		var msg model.Notification
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		_ = hub.Notify(context.Background(), notification)
		select {
		case msg := <-received:
			if msg.DeviceName != "edge-1" || msg.Severity != model.AlertSeverityCritical {
				t.Fatalf("payload = %+v", msg)
			}
			return
		case <-deadline:
			t.Fatalf("broadcast never reached the subscriber")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
