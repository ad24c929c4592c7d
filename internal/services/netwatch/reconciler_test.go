package netwatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
	"github.com/mikro-fleet/monitor/internal/routeros/mock"
	"github.com/mikro-fleet/monitor/internal/services/alert"
)

type fakeTargetStore struct {
	targets   map[string]model.WatchTarget
	upsertErr error
}

func (s *fakeTargetStore) LoadWatchTargets(_ context.Context, _ int64) (map[string]model.WatchTarget, error) {
	out := make(map[string]model.WatchTarget, len(s.targets))
	for host, target := range s.targets {
		out[host] = target
	}
	return out, nil
}

func (s *fakeTargetStore) UpsertWatchTarget(_ context.Context, target model.WatchTarget) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if s.targets == nil {
		s.targets = make(map[string]model.WatchTarget)
	}
	s.targets[target.Host] = target
	return nil
}

type fakeAlerts struct {
	requests []alert.Request
}

func (a *fakeAlerts) Emit(_ context.Context, req alert.Request) (bool, error) {
	a.requests = append(a.requests, req)
	return true, nil
}

func testReconciler(store Store, alerts Alerts) *Reconciler {
	r := NewReconciler(store, alerts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return r
}

func netwatchRunner(rows ...map[string]string) *mock.Runner {
	return &mock.Runner{
		RunFunc: func(ctx context.Context, cmd string, params map[string]string) ([]map[string]string, error) {
			if cmd != "/tool/netwatch/print" {
				return nil, errors.New("unexpected command " + cmd)
			}
			return rows, nil
		},
	}
}

func TestSyncOneCreatesTargets(t *testing.T) {
	store := &fakeTargetStore{}
	alerts := &fakeAlerts{}
	reconciler := testReconciler(store, alerts)

	result := reconciler.SyncOne(context.Background(), netwatchRunner(
		map[string]string{
			"host":     "8.8.8.8",
			"status":   "up",
			"since":    "jan/05 10:00:00",
			"comment":  "Google DNS",
			"interval": "00:01:00",
		},
	), model.Device{ID: 1})

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Synced != 1 {
		t.Fatalf("synced = %d", result.Synced)
	}
	target := store.targets["8.8.8.8"]
	if target.Name != "Google DNS" {
		t.Fatalf("name = %q", target.Name)
	}
	if target.Status != model.TargetStatusUp {
		t.Fatalf("status = %q", target.Status)
	}
	if target.LastUpAt == nil || target.LastUpAt.Month() != time.January {
		t.Fatalf("last up = %v", target.LastUpAt)
	}
	if target.IntervalSeconds != 60 {
		t.Fatalf("interval = %d", target.IntervalSeconds)
	}
	if len(alerts.requests) != 0 {
		t.Fatalf("creation must not alert, got %+v", alerts.requests)
	}
}

func TestSyncOneAlertsOnSettledFlip(t *testing.T) {
	store := &fakeTargetStore{targets: map[string]model.WatchTarget{
		"8.8.8.8": {DeviceID: 1, Host: "8.8.8.8", Name: "Google DNS", Status: model.TargetStatusUp},
	}}
	alerts := &fakeAlerts{}
	reconciler := testReconciler(store, alerts)

	result := reconciler.SyncOne(context.Background(), netwatchRunner(
		map[string]string{"host": "8.8.8.8", "status": "down", "since": "jan/05 11:30:00"},
	), model.Device{ID: 1})

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(alerts.requests) != 1 {
		t.Fatalf("expected one transition alert, got %d", len(alerts.requests))
	}
	req := alerts.requests[0]
	if req.Type != model.AlertTypeWatchTarget || req.State != "down" {
		t.Fatalf("alert request wrong: %+v", req)
	}
	if req.Severity != model.AlertSeverityWarning {
		t.Fatalf("down flip must be a warning, got %q", req.Severity)
	}
	target := store.targets["8.8.8.8"]
	if target.Status != model.TargetStatusDown {
		t.Fatalf("status = %q", target.Status)
	}
	if target.LastDownAt == nil {
		t.Fatalf("last down must be set from the remote timestamp")
	}
}

func TestSyncOneNoAlertThroughUnknown(t *testing.T) {
	store := &fakeTargetStore{targets: map[string]model.WatchTarget{
		"1.1.1.1": {DeviceID: 1, Host: "1.1.1.1", Status: model.TargetStatusUnknown},
	}}
	alerts := &fakeAlerts{}
	reconciler := testReconciler(store, alerts)

	reconciler.SyncOne(context.Background(), netwatchRunner(
		map[string]string{"host": "1.1.1.1", "status": "down"},
	), model.Device{ID: 1})

	if len(alerts.requests) != 0 {
		t.Fatalf("unknown to down is not a settled flip, got %+v", alerts.requests)
	}
	if store.targets["1.1.1.1"].Status != model.TargetStatusDown {
		t.Fatalf("status must still settle to down")
	}
}

func TestSyncOneIsIdempotent(t *testing.T) {
	store := &fakeTargetStore{}
	alerts := &fakeAlerts{}
	reconciler := testReconciler(store, alerts)
	runner := netwatchRunner(
		map[string]string{"host": "8.8.8.8", "status": "up", "since": "jan/05 10:00:00"},
	)

	reconciler.SyncOne(context.Background(), runner, model.Device{ID: 1})
	reconciler.SyncOne(context.Background(), runner, model.Device{ID: 1})

	if len(store.targets) != 1 {
		t.Fatalf("expected one row per host, got %d", len(store.targets))
	}
	if len(alerts.requests) != 0 {
		t.Fatalf("unchanged status must not alert, got %+v", alerts.requests)
	}
}

func TestSyncOneFetchFailureLeavesRowsUntouched(t *testing.T) {
	store := &fakeTargetStore{targets: map[string]model.WatchTarget{
		"8.8.8.8": {DeviceID: 1, Host: "8.8.8.8", Status: model.TargetStatusUp},
	}}
	reconciler := testReconciler(store, &fakeAlerts{})
	runner := &mock.Runner{
		RunFunc: func(ctx context.Context, cmd string, params map[string]string) ([]map[string]string, error) {
			return nil, errors.New("connection reset")
		},
	}

	result := reconciler.SyncOne(context.Background(), runner, model.Device{ID: 1})
	if len(result.Errors) != 1 {
		t.Fatalf("expected recorded fetch error, got %v", result.Errors)
	}
	if store.targets["8.8.8.8"].Status != model.TargetStatusUp {
		t.Fatalf("existing rows must stay untouched on fetch failure")
	}
}

func TestSyncOneAbsentHostsAreKept(t *testing.T) {
	store := &fakeTargetStore{targets: map[string]model.WatchTarget{
		"10.0.0.1": {DeviceID: 1, Host: "10.0.0.1", Status: model.TargetStatusUp},
	}}
	reconciler := testReconciler(store, &fakeAlerts{})

	reconciler.SyncOne(context.Background(), netwatchRunner(
		map[string]string{"host": "8.8.8.8", "status": "up"},
	), model.Device{ID: 1})

	if _, ok := store.targets["10.0.0.1"]; !ok {
		t.Fatalf("hosts absent from the snapshot must not be deleted")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name         string
		disabled     bool
		comment      string
		remoteName   string
		previousName string
		want         string
	}{
		{name: "comment wins", comment: "DNS", remoteName: "nw1", want: "DNS"},
		{name: "remote name next", remoteName: "nw1", want: "nw1"},
		{name: "previous name kept on update", previousName: "old-label", want: "old-label"},
		{name: "disabled gets prefix", disabled: true, comment: "DNS", want: "[DISABLED] DNS"},
		{
			name:         "stale prefix stripped before reapplying",
			disabled:     true,
			previousName: "[DISABLED] DNS",
			want:         "[DISABLED] DNS",
		},
		{
			name:         "reenabled target loses the prefix",
			previousName: "[DISABLED] DNS",
			want:         "DNS",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := displayName(tc.disabled, tc.comment, tc.remoteName, tc.previousName)
			if got != tc.want {
				t.Fatalf("displayName = %q, want %q", got, tc.want)
			}
		})
	}
}
