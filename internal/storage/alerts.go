package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mikro-fleet/monitor/internal/model"
)

// InsertAlert appends one alert row and fills in its id.
func (r *Repository) InsertAlert(ctx context.Context, alert *model.Alert) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (device_id, type, target, severity, state, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.DeviceID, string(alert.Type), alert.Target, string(alert.Severity),
		alert.State, alert.Message, formatTime(alert.CreatedAt))
	if err != nil {
		return err
	}
	alert.ID, _ = res.LastInsertId()
	return nil
}

// LatestAlert returns the newest alert for a dedup key
// (device_id, target, type).
func (r *Repository) LatestAlert(ctx context.Context, deviceID int64, target string, alertType model.AlertType) (model.Alert, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, device_id, type, target, severity, state, message, created_at
		FROM alerts
		WHERE device_id = ? AND target = ? AND type = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, deviceID, target, string(alertType))

	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Alert{}, fmt.Errorf("%w: alert for %s/%s", ErrNotFound, target, alertType)
	}
	return alert, err
}

// AlertFilter narrows ListAlerts output.
type AlertFilter struct {
	DeviceID int64
	Type     model.AlertType
	Limit    int
}

// ListAlerts returns newest alerts first, optionally filtered.
func (r *Repository) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if filter.DeviceID > 0 {
		clauses = append(clauses, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, device_id, type, target, severity, state, message, created_at FROM alerts`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.Alert, 0, limit)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}

func scanAlert(row rowScanner) (model.Alert, error) {
	var (
		alert     model.Alert
		alertType string
		severity  string
		createdAt string
	)
	err := row.Scan(
		&alert.ID, &alert.DeviceID, &alertType, &alert.Target,
		&severity, &alert.State, &alert.Message, &createdAt,
	)
	if err != nil {
		return model.Alert{}, err
	}
	alert.Type = model.AlertType(alertType)
	alert.Severity = model.AlertSeverity(severity)
	alert.CreatedAt = parseTime(createdAt)
	return alert, nil
}
