// Package session diffs the device's active remote sessions against the
// previously observed set and records connect/disconnect transitions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
	"github.com/mikro-fleet/monitor/internal/routeros"
	"github.com/mikro-fleet/monitor/internal/services/alert"
)

// Store holds the tracked session set. Replacement is wholesale; rows for
// sessions that stopped appearing are removed in the same operation.
type Store interface {
	LoadActiveSessions(ctx context.Context, deviceID int64) (map[string]model.ActiveSession, error)
	ReplaceActiveSessions(ctx context.Context, deviceID int64, sessions []model.ActiveSession) error
}

// Alerts receives one alert per connect or disconnect transition.
type Alerts interface {
	Emit(ctx context.Context, req alert.Request) (bool, error)
}

// Diff lists the transitions one tracking pass observed.
type Diff struct {
	Connected    []model.ActiveSession
	Disconnected []model.ActiveSession
}

// Tracker computes set differences by session key.
type Tracker struct {
	store  Store
	alerts Alerts
	logger *slog.Logger
	now    func() time.Time
}

func NewTracker(store Store, alerts Alerts, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, alerts: alerts, logger: logger, now: time.Now}
}

// FetchActive lists the device's current PPP sessions. The username is the
// natural key; unnamed rows are skipped.
func (t *Tracker) FetchActive(ctx context.Context, runner routeros.Runner, deviceID int64) ([]model.ActiveSession, error) {
	rows, err := runner.Run(ctx, "/ppp/active/print", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch active sessions: %w", err)
	}

	now := t.now().UTC()
	sessions := make([]model.ActiveSession, 0, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(row["name"])
		if key == "" {
			continue
		}
		sessions = append(sessions, model.ActiveSession{
			DeviceID:   deviceID,
			Key:        key,
			Service:    row["service"],
			Address:    row["address"],
			StartedAt:  now,
			ObservedAt: now,
		})
	}
	return sessions, nil
}

// Track diffs current against the persisted previous snapshot, emits one
// alert per transition, and replaces the tracked set to exactly match
// current. Survivors keep their original start time.
func (t *Tracker) Track(ctx context.Context, device model.Device, current []model.ActiveSession) (Diff, error) {
	previous, err := t.store.LoadActiveSessions(ctx, device.ID)
	if err != nil {
		return Diff{}, fmt.Errorf("load previous sessions: %w", err)
	}

	diff := Diff{}
	currentKeys := make(map[string]struct{}, len(current))
	replacement := make([]model.ActiveSession, 0, len(current))
	for _, sess := range current {
		currentKeys[sess.Key] = struct{}{}
		if prev, ok := previous[sess.Key]; ok {
			sess.StartedAt = prev.StartedAt
		} else {
			diff.Connected = append(diff.Connected, sess)
		}
		replacement = append(replacement, sess)
	}
	for key, prev := range previous {
		if _, ok := currentKeys[key]; !ok {
			diff.Disconnected = append(diff.Disconnected, prev)
		}
	}
	sort.Slice(diff.Disconnected, func(i, j int) bool {
		return diff.Disconnected[i].Key < diff.Disconnected[j].Key
	})

	for _, sess := range diff.Connected {
		t.emitTransition(ctx, device, sess, "connected")
	}
	for _, sess := range diff.Disconnected {
		t.emitTransition(ctx, device, sess, "disconnected")
	}

	if err := t.store.ReplaceActiveSessions(ctx, device.ID, replacement); err != nil {
		return diff, fmt.Errorf("replace sessions: %w", err)
	}
	return diff, nil
}

func (t *Tracker) emitTransition(ctx context.Context, device model.Device, sess model.ActiveSession, state string) {
	if _, err := t.alerts.Emit(ctx, alert.Request{
		Device:     device,
		Target:     sess.Key,
		TargetName: sess.Key,
		Type:       model.AlertTypeSession,
		Severity:   model.AlertSeverityInfo,
		State:      state,
		Message:    fmt.Sprintf("session %s %s", sess.Key, state),
	}); err != nil {
		t.logger.Warn("session transition alert failed",
			"device", device.ID, "session", sess.Key, "err", err)
	}
}
