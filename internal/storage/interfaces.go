package storage

import (
	"context"

	"github.com/mikro-fleet/monitor/internal/model"
)

// LoadInterfaceStates returns the device's interface rows keyed by name.
func (r *Repository) LoadInterfaceStates(ctx context.Context, deviceID int64) (map[string]model.InterfaceState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, name, comment, mac_address, running, disabled,
			rx_bytes, tx_bytes, rx_rate, tx_rate, last_updated_at
		FROM interface_states
		WHERE device_id = ?`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]model.InterfaceState{}
	for rows.Next() {
		var (
			state   model.InterfaceState
			updated string
		)
		if err := rows.Scan(
			&state.DeviceID, &state.Name, &state.Comment, &state.MACAddress,
			&state.Running, &state.Disabled, &state.RxBytes, &state.TxBytes,
			&state.RxRate, &state.TxRate, &updated,
		); err != nil {
			return nil, err
		}
		state.LastUpdatedAt = parseTime(updated)
		result[state.Name] = state
	}
	return result, rows.Err()
}

// UpsertInterfaceStates writes all rows for one cycle in a single
// transaction keyed by (device_id, name).
func (r *Repository) UpsertInterfaceStates(ctx context.Context, states []model.InterfaceState) error {
	if len(states) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO interface_states
			(device_id, name, comment, mac_address, running, disabled,
			 rx_bytes, tx_bytes, rx_rate, tx_rate, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, name) DO UPDATE SET
			comment=excluded.comment,
			mac_address=excluded.mac_address,
			running=excluded.running,
			disabled=excluded.disabled,
			rx_bytes=excluded.rx_bytes,
			tx_bytes=excluded.tx_bytes,
			rx_rate=excluded.rx_rate,
			tx_rate=excluded.tx_rate,
			last_updated_at=excluded.last_updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, state := range states {
		if _, err := stmt.ExecContext(
			ctx,
			state.DeviceID, state.Name, state.Comment, state.MACAddress,
			state.Running, state.Disabled, state.RxBytes, state.TxBytes,
			state.RxRate, state.TxRate, formatTime(state.LastUpdatedAt),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
