// Package netwatch reconciles a device's remote watch-list snapshot against
// the persisted watch target rows, keyed by host.
package netwatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
	"github.com/mikro-fleet/monitor/internal/routeros"
	"github.com/mikro-fleet/monitor/internal/services/alert"
)

// DisabledPrefix marks disabled remote entries in the display name.
const DisabledPrefix = "[DISABLED] "

// Store is the watch target row slice of the repository.
type Store interface {
	LoadWatchTargets(ctx context.Context, deviceID int64) (map[string]model.WatchTarget, error)
	UpsertWatchTarget(ctx context.Context, target model.WatchTarget) error
}

// Alerts receives settled up/down transitions before they are persisted.
type Alerts interface {
	Emit(ctx context.Context, req alert.Request) (bool, error)
}

// Result summarizes one reconciliation pass.
type Result struct {
	Synced int
	Errors []string
}

// Reconciler diffs remote watch-list snapshots against persisted rows.
type Reconciler struct {
	store  Store
	alerts Alerts
	logger *slog.Logger
	now    func() time.Time
}

func NewReconciler(store Store, alerts Alerts, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, alerts: alerts, logger: logger, now: time.Now}
}

// SyncOne fetches the device's watch list and upserts each entry by host.
// A whole-device fetch failure is recorded as an error string and leaves
// existing rows untouched; it never forces them to unknown. Hosts absent
// from the snapshot are not deleted here.
func (r *Reconciler) SyncOne(ctx context.Context, runner routeros.Runner, device model.Device) Result {
	rows, err := runner.Run(ctx, "/tool/netwatch/print", nil)
	if err != nil {
		return Result{Errors: []string{fmt.Sprintf("fetch netwatch: %v", err)}}
	}

	previous, err := r.store.LoadWatchTargets(ctx, device.ID)
	if err != nil {
		return Result{Errors: []string{fmt.Sprintf("load watch targets: %v", err)}}
	}

	now := r.now().UTC()
	result := Result{}
	for _, row := range rows {
		host := strings.TrimSpace(row["host"])
		if host == "" {
			continue
		}

		prev, existed := previous[host]
		status := model.ParseTargetStatus(row["status"])
		disabled := routeros.BoolFromWord(row["disabled"])
		since := ParseSince(row["since"], now)

		target := model.WatchTarget{
			DeviceID:        device.ID,
			Host:            host,
			Name:            displayName(disabled, row["comment"], row["name"], prev.Name),
			Status:          status,
			LastUpAt:        prev.LastUpAt,
			LastDownAt:      prev.LastDownAt,
			IntervalSeconds: int(routeros.ParseUptime(row["interval"])),
			Disabled:        disabled,
			LastCheckedAt:   now,
		}
		switch status {
		case model.TargetStatusUp:
			if since != nil {
				target.LastUpAt = since
			}
		case model.TargetStatusDown:
			if since != nil {
				target.LastDownAt = since
			}
		}

		if existed && prev.Status.Settled() && status.Settled() && prev.Status != status {
			r.emitTransition(ctx, device, target, status)
		}

		if err := r.store.UpsertWatchTarget(ctx, target); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("persist %s: %v", host, err))
			continue
		}
		result.Synced++
	}
	return result
}

func (r *Reconciler) emitTransition(ctx context.Context, device model.Device, target model.WatchTarget, status model.TargetStatus) {
	severity := model.AlertSeverityWarning
	message := fmt.Sprintf("watch target %s is down", target.Host)
	if status == model.TargetStatusUp {
		severity = model.AlertSeverityInfo
		message = fmt.Sprintf("watch target %s is up", target.Host)
	}

	if _, err := r.alerts.Emit(ctx, alert.Request{
		Device:     device,
		Target:     target.Host,
		TargetName: target.Name,
		Type:       model.AlertTypeWatchTarget,
		Severity:   severity,
		State:      string(status),
		Message:    message,
	}); err != nil {
		r.logger.Warn("watch transition alert failed",
			"device", device.ID, "host", target.Host, "err", err)
	}
}

// displayName follows the remote comment, then the remote name, then (on
// update) the previous name with any stale disabled prefix stripped.
func displayName(disabled bool, comment, remoteName, previousName string) string {
	base := routeros.FirstNonEmpty(comment, remoteName)
	if base == "" {
		base = strings.TrimPrefix(strings.TrimSpace(previousName), DisabledPrefix)
	}
	if disabled {
		return DisabledPrefix + base
	}
	return base
}
