package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Repository is the single durable store shared across device cycles.
// All writes are scoped by device id, so concurrent cycles never contend
// on the same rows.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens the sqlite database and runs migrations.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	repo := &Repository{db: db, logger: logger}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL,
			port INTEGER NOT NULL DEFAULT 8728,
			username TEXT NOT NULL DEFAULT '',
			secret TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'unknown',
			identity TEXT NOT NULL DEFAULT '',
			board_name TEXT NOT NULL DEFAULT '',
			serial_number TEXT NOT NULL DEFAULT '',
			os_version TEXT NOT NULL DEFAULT '',
			last_seen_at TEXT,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS metric_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id INTEGER NOT NULL,
			collected_at TEXT NOT NULL,
			cpu_load INTEGER NOT NULL DEFAULT 0,
			memory_used INTEGER NOT NULL DEFAULT 0,
			memory_total INTEGER NOT NULL DEFAULT 0,
			disk_used INTEGER NOT NULL DEFAULT 0,
			disk_total INTEGER NOT NULL DEFAULT 0,
			uptime_seconds INTEGER NOT NULL DEFAULT 0,
			temperature INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS interface_states (
			device_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			mac_address TEXT NOT NULL DEFAULT '',
			running INTEGER NOT NULL DEFAULT 0,
			disabled INTEGER NOT NULL DEFAULT 0,
			rx_bytes INTEGER NOT NULL DEFAULT 0,
			tx_bytes INTEGER NOT NULL DEFAULT 0,
			rx_rate INTEGER NOT NULL DEFAULT 0,
			tx_rate INTEGER NOT NULL DEFAULT 0,
			last_updated_at TEXT NOT NULL,
			PRIMARY KEY (device_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS watch_targets (
			device_id INTEGER NOT NULL,
			host TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'unknown',
			last_up_at TEXT,
			last_down_at TEXT,
			latency_ms INTEGER,
			packet_loss REAL NOT NULL DEFAULT 0,
			interval_seconds INTEGER NOT NULL DEFAULT 0,
			disabled INTEGER NOT NULL DEFAULT 0,
			last_checked_at TEXT NOT NULL,
			PRIMARY KEY (device_id, host)
		);`,
		`CREATE TABLE IF NOT EXISTS active_sessions (
			device_id INTEGER NOT NULL,
			session_key TEXT NOT NULL,
			service TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			observed_at TEXT NOT NULL,
			PRIMARY KEY (device_id, session_key)
		);`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			target TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_metric_snapshots_device ON metric_snapshots(device_id, collected_at);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_dedup ON alerts(device_id, target, type, created_at);`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}

func toTimePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func fromTimePtr(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func formatTime(v time.Time) string {
	return v.UTC().Format(time.RFC3339Nano)
}

func fromInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	value := v.Int64
	return &value
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	value := int(v.Int64)
	return &value
}

func fromIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
