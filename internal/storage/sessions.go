package storage

import (
	"context"

	"github.com/mikro-fleet/monitor/internal/model"
)

// LoadActiveSessions returns the device's tracked sessions keyed by
// session key.
func (r *Repository) LoadActiveSessions(ctx context.Context, deviceID int64) (map[string]model.ActiveSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, session_key, service, address, started_at, observed_at
		FROM active_sessions
		WHERE device_id = ?`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]model.ActiveSession{}
	for rows.Next() {
		var (
			session             model.ActiveSession
			startedAt, observed string
		)
		if err := rows.Scan(
			&session.DeviceID, &session.Key, &session.Service,
			&session.Address, &startedAt, &observed,
		); err != nil {
			return nil, err
		}
		session.StartedAt = parseTime(startedAt)
		session.ObservedAt = parseTime(observed)
		result[session.Key] = session
	}
	return result, rows.Err()
}

// ReplaceActiveSessions swaps the tracked set to exactly match the current
// snapshot in one transaction. Rows that stopped appearing are removed here,
// not by any deferred cleanup.
func (r *Repository) ReplaceActiveSessions(ctx context.Context, deviceID int64, sessions []model.ActiveSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM active_sessions WHERE device_id = ?`, deviceID); err != nil {
		return err
	}

	if len(sessions) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO active_sessions
				(device_id, session_key, service, address, started_at, observed_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, session := range sessions {
			if _, err := stmt.ExecContext(
				ctx,
				deviceID, session.Key, session.Service, session.Address,
				formatTime(session.StartedAt), formatTime(session.ObservedAt),
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
