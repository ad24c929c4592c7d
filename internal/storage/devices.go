package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
)

const deviceColumns = `id, name, address, port, username, secret, status, identity,
	board_name, serial_number, os_version, last_seen_at, updated_at`

// ListDevices returns all registry rows ordered by id.
func (r *Repository) ListDevices(ctx context.Context) ([]model.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, device)
	}
	return result, rows.Err()
}

// GetDevice returns one registry row by id.
func (r *Repository) GetDevice(ctx context.Context, id int64) (model.Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Device{}, fmt.Errorf("%w: device %d", ErrNotFound, id)
	}
	return device, err
}

// UpsertDevice creates or updates a registry row and returns its id.
func (r *Repository) UpsertDevice(ctx context.Context, device model.Device) (int64, error) {
	now := formatTime(time.Now())
	if device.ID > 0 {
		_, err := r.db.ExecContext(ctx, `
			UPDATE devices SET name = ?, address = ?, port = ?, username = ?, secret = ?, updated_at = ?
			WHERE id = ?`,
			device.Name, device.Address, device.Port, device.Username, device.Secret, now, device.ID)
		return device.ID, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (name, address, port, username, secret, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		device.Name, device.Address, device.Port, device.Username, device.Secret,
		string(model.DeviceStatusUnknown), now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateDeviceStatus persists the reconciled status; lastSeen is only
// advanced when non-nil.
func (r *Repository) UpdateDeviceStatus(ctx context.Context, id int64, status model.DeviceStatus, lastSeen *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET status = ?, last_seen_at = COALESCE(?, last_seen_at), updated_at = ?
		WHERE id = ?`,
		string(status), fromTimePtr(lastSeen), formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: device %d", ErrNotFound, id)
	}
	return nil
}

// UpdateDeviceIdentity persists identity fields collected on full sync.
func (r *Repository) UpdateDeviceIdentity(ctx context.Context, id int64, identity, boardName, serialNumber, osVersion string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET identity = ?, board_name = ?, serial_number = ?, os_version = ?, updated_at = ?
		WHERE id = ?`,
		identity, boardName, serialNumber, osVersion, formatTime(time.Now()), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (model.Device, error) {
	var (
		device    model.Device
		status    string
		lastSeen  sql.NullString
		updatedAt string
	)
	err := row.Scan(
		&device.ID, &device.Name, &device.Address, &device.Port,
		&device.Username, &device.Secret, &status, &device.Identity,
		&device.BoardName, &device.SerialNumber, &device.OSVersion,
		&lastSeen, &updatedAt,
	)
	if err != nil {
		return model.Device{}, err
	}
	device.Status = model.ParseDeviceStatus(status)
	device.LastSeenAt = toTimePtr(lastSeen)
	device.UpdatedAt = parseTime(updatedAt)
	return device, nil
}
