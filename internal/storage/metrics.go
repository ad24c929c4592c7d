package storage

import (
	"context"
	"database/sql"

	"github.com/mikro-fleet/monitor/internal/model"
)

// InsertMetricSnapshot appends one immutable resource sample.
func (r *Repository) InsertMetricSnapshot(ctx context.Context, snapshot model.MetricSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metric_snapshots
			(device_id, collected_at, cpu_load, memory_used, memory_total,
			 disk_used, disk_total, uptime_seconds, temperature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.DeviceID, formatTime(snapshot.CollectedAt), snapshot.CPULoad,
		snapshot.MemoryUsed, snapshot.MemoryTotal, snapshot.DiskUsed,
		snapshot.DiskTotal, snapshot.UptimeSeconds, fromIntPtr(snapshot.Temperature))
	return err
}

// ListMetricSnapshots returns up to limit newest samples for a device.
func (r *Repository) ListMetricSnapshots(ctx context.Context, deviceID int64, limit int) ([]model.MetricSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, collected_at, cpu_load, memory_used, memory_total,
			disk_used, disk_total, uptime_seconds, temperature
		FROM metric_snapshots
		WHERE device_id = ?
		ORDER BY collected_at DESC
		LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.MetricSnapshot, 0, limit)
	for rows.Next() {
		var (
			snapshot    model.MetricSnapshot
			collectedAt string
			temperature sql.NullInt64
		)
		if err := rows.Scan(
			&snapshot.ID, &snapshot.DeviceID, &collectedAt, &snapshot.CPULoad,
			&snapshot.MemoryUsed, &snapshot.MemoryTotal, &snapshot.DiskUsed,
			&snapshot.DiskTotal, &snapshot.UptimeSeconds, &temperature,
		); err != nil {
			return nil, err
		}
		snapshot.CollectedAt = parseTime(collectedAt)
		snapshot.Temperature = intPtr(temperature)
		result = append(result, snapshot)
	}
	return result, rows.Err()
}
