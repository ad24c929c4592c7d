// Package alert decides whether a state transition becomes a persisted,
// deduplicated alert and forwards emitted alerts to external notifiers.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
	"github.com/mikro-fleet/monitor/internal/storage"
)

// DefaultDedupWindow suppresses identical repeated conditions. The exact
// length is deployment policy, so it stays configurable.
const DefaultDedupWindow = 5 * time.Minute

// Store is the durable alert log.
type Store interface {
	LatestAlert(ctx context.Context, deviceID int64, target string, alertType model.AlertType) (model.Alert, error)
	InsertAlert(ctx context.Context, alert *model.Alert) error
}

// Notifier is an external dispatcher. Delivery failures are logged and
// discarded; the persisted row is the source of truth.
type Notifier interface {
	Notify(ctx context.Context, notification model.Notification) error
}

// Request is one candidate alert. Target is the dedup key component:
// a watch host, a session key, or "status" for device transitions.
type Request struct {
	Device     model.Device
	Target     string
	TargetName string
	Type       model.AlertType
	Severity   model.AlertSeverity
	State      string
	Message    string
}

// Emitter applies the dedup policy and fans emitted alerts out.
type Emitter struct {
	store     Store
	notifiers []Notifier
	window    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewEmitter(store Store, window time.Duration, logger *slog.Logger, notifiers ...Notifier) *Emitter {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Emitter{
		store:     store,
		notifiers: notifiers,
		window:    window,
		logger:    logger,
		now:       time.Now,
	}
}

// ShouldEmit reports whether a transition to newState deserves a new alert
// for the (device, target, type) dedup key.
func (e *Emitter) ShouldEmit(ctx context.Context, deviceID int64, target string, alertType model.AlertType, newState string) (bool, error) {
	latest, err := e.store.LatestAlert(ctx, deviceID, target, alertType)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup latest alert: %w", err)
	}
	if latest.State != newState {
		// Settled state genuinely flipped since the last emission.
		return true, nil
	}
	return e.now().UTC().Sub(latest.CreatedAt) >= e.window, nil
}

// Emit persists the alert if the dedup policy allows it, then invokes the
// notifiers best-effort. It returns whether an alert was written.
func (e *Emitter) Emit(ctx context.Context, req Request) (bool, error) {
	ok, err := e.ShouldEmit(ctx, req.Device.ID, req.Target, req.Type, req.State)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	now := e.now().UTC()
	row := model.Alert{
		DeviceID:  req.Device.ID,
		Type:      req.Type,
		Target:    req.Target,
		Severity:  req.Severity,
		State:     req.State,
		Message:   req.Message,
		CreatedAt: now,
	}
	if err := e.store.InsertAlert(ctx, &row); err != nil {
		return false, fmt.Errorf("persist alert: %w", err)
	}

	notification := model.Notification{
		DeviceID:   req.Device.ID,
		DeviceName: req.Device.DisplayName(),
		TargetHost: req.Target,
		TargetName: req.TargetName,
		Type:       req.Type,
		Severity:   req.Severity,
		Message:    req.Message,
		Timestamp:  now,
	}
	for _, notifier := range e.notifiers {
		if err := notifier.Notify(ctx, notification); err != nil {
			e.logger.Warn("notifier dispatch failed",
				"device", req.Device.ID, "type", req.Type, "err", err)
		}
	}
	return true, nil
}
