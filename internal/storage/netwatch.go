package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mikro-fleet/monitor/internal/model"
)

const watchTargetColumns = `device_id, host, name, status, last_up_at, last_down_at,
	latency_ms, packet_loss, interval_seconds, disabled, last_checked_at`

// LoadWatchTargets returns the device's watch rows keyed by host.
func (r *Repository) LoadWatchTargets(ctx context.Context, deviceID int64) (map[string]model.WatchTarget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+watchTargetColumns+` FROM watch_targets WHERE device_id = ?`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]model.WatchTarget{}
	for rows.Next() {
		target, err := scanWatchTarget(rows)
		if err != nil {
			return nil, err
		}
		result[target.Host] = target
	}
	return result, rows.Err()
}

// ListWatchTargets returns the device's watch rows ordered by host.
func (r *Repository) ListWatchTargets(ctx context.Context, deviceID int64) ([]model.WatchTarget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+watchTargetColumns+` FROM watch_targets WHERE device_id = ? ORDER BY host`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.WatchTarget, 0)
	for rows.Next() {
		target, err := scanWatchTarget(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, target)
	}
	return result, rows.Err()
}

// UpsertWatchTarget writes one row keyed by (device_id, host).
func (r *Repository) UpsertWatchTarget(ctx context.Context, target model.WatchTarget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watch_targets
			(device_id, host, name, status, last_up_at, last_down_at,
			 latency_ms, packet_loss, interval_seconds, disabled, last_checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, host) DO UPDATE SET
			name=excluded.name,
			status=excluded.status,
			last_up_at=excluded.last_up_at,
			last_down_at=excluded.last_down_at,
			interval_seconds=excluded.interval_seconds,
			disabled=excluded.disabled,
			last_checked_at=excluded.last_checked_at`,
		target.DeviceID, target.Host, target.Name, string(target.Status),
		fromTimePtr(target.LastUpAt), fromTimePtr(target.LastDownAt),
		fromInt64Ptr(target.LatencyMs), target.PacketLossPercent,
		target.IntervalSeconds, target.Disabled, formatTime(target.LastCheckedAt))
	return err
}

// UpdateWatchTargetProbe stores one probe result without touching the
// reconciled status fields.
func (r *Repository) UpdateWatchTargetProbe(ctx context.Context, deviceID int64, host string, latencyMs *int64, packetLoss float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE watch_targets
		SET latency_ms = ?, packet_loss = ?
		WHERE device_id = ? AND host = ?`,
		fromInt64Ptr(latencyMs), packetLoss, deviceID, host)
	return err
}

// DeleteWatchTarget removes one row. Reconciliation never deletes; this is
// the explicit removal path for the API.
func (r *Repository) DeleteWatchTarget(ctx context.Context, deviceID int64, host string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM watch_targets WHERE device_id = ? AND host = ?`, deviceID, host)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: watch target %s", ErrNotFound, host)
	}
	return nil
}

func scanWatchTarget(row rowScanner) (model.WatchTarget, error) {
	var (
		target           model.WatchTarget
		status           string
		lastUp, lastDown sql.NullString
		latency          sql.NullInt64
		lastChecked      string
	)
	err := row.Scan(
		&target.DeviceID, &target.Host, &target.Name, &status,
		&lastUp, &lastDown, &latency, &target.PacketLossPercent,
		&target.IntervalSeconds, &target.Disabled, &lastChecked,
	)
	if err != nil {
		return model.WatchTarget{}, err
	}
	target.Status = model.ParseTargetStatus(status)
	target.LastUpAt = toTimePtr(lastUp)
	target.LastDownAt = toTimePtr(lastDown)
	target.LatencyMs = int64Ptr(latency)
	target.LastCheckedAt = parseTime(lastChecked)
	return target, nil
}
