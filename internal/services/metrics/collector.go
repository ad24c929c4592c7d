// Package metrics pulls identity and resource snapshots from a device and
// derives interface rates from raw counter deltas.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mikro-fleet/monitor/internal/routeros"
)

// InterfaceReading is one raw counter sample for an interface.
type InterfaceReading struct {
	Name       string
	Comment    string
	MACAddress string
	Running    bool
	Disabled   bool
	RxBytes    int64
	TxBytes    int64
}

// Snapshot bundles everything one full-sync fetch produces.
type Snapshot struct {
	Identity      string
	BoardName     string
	SerialNumber  string
	OSVersion     string
	CPULoad       int
	MemoryUsed    int64
	MemoryTotal   int64
	DiskUsed      int64
	DiskTotal     int64
	UptimeSeconds int64
	Temperature   *int
	Interfaces    []InterfaceReading
	CollectedAt   time.Time
}

// Collector fetches snapshots over an open session.
type Collector struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{logger: logger, now: time.Now}
}

// FetchIdentity runs the cheap liveness command and returns the device name.
func (c *Collector) FetchIdentity(ctx context.Context, runner routeros.Runner) (string, error) {
	rows, err := runner.Run(ctx, "/system/identity/print", nil)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", &routeros.ProtocolError{Command: "/system/identity/print", Reason: "empty reply"}
	}
	return strings.TrimSpace(rows[0]["name"]), nil
}

// FetchSnapshot collects identity, resources and interface counters.
// The health and routerboard commands are secondary: their failures leave
// the affected fields at defaults instead of aborting the snapshot.
func (c *Collector) FetchSnapshot(ctx context.Context, runner routeros.Runner) (*Snapshot, error) {
	snapshot := &Snapshot{CollectedAt: c.now().UTC()}

	identity, err := c.FetchIdentity(ctx, runner)
	if err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}
	snapshot.Identity = identity

	resourceRows, err := runner.Run(ctx, "/system/resource/print", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch resources: %w", err)
	}
	if len(resourceRows) == 0 {
		return nil, &routeros.ProtocolError{Command: "/system/resource/print", Reason: "empty reply"}
	}
	applyResourceRow(snapshot, resourceRows[0])

	if healthRows, err := runner.Run(ctx, "/system/health/print", nil); err != nil {
		c.logger.Debug("health fetch failed", "err", err)
	} else {
		snapshot.Temperature = temperatureFromHealth(healthRows)
	}

	if boardRows, err := runner.Run(ctx, "/system/routerboard/print", nil); err != nil {
		c.logger.Debug("routerboard fetch failed", "err", err)
	} else if len(boardRows) > 0 {
		snapshot.SerialNumber = strings.TrimSpace(boardRows[0]["serial-number"])
		if board := strings.TrimSpace(boardRows[0]["model"]); board != "" {
			snapshot.BoardName = board
		}
	}

	interfaceRows, err := runner.Run(ctx, "/interface/print", map[string]string{
		".proplist": "name,comment,mac-address,running,disabled,rx-byte,tx-byte",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch interfaces: %w", err)
	}
	snapshot.Interfaces = mapInterfaceRows(interfaceRows)

	return snapshot, nil
}

func applyResourceRow(snapshot *Snapshot, row map[string]string) {
	snapshot.OSVersion = strings.TrimSpace(row["version"])
	if snapshot.BoardName == "" {
		snapshot.BoardName = strings.TrimSpace(row["board-name"])
	}
	snapshot.CPULoad = int(routeros.ParseInt64(row["cpu-load"]))
	snapshot.UptimeSeconds = routeros.ParseUptime(row["uptime"])

	freeMemory := routeros.ParseInt64(row["free-memory"])
	snapshot.MemoryTotal = routeros.ParseInt64(row["total-memory"])
	if snapshot.MemoryTotal > 0 {
		snapshot.MemoryUsed = snapshot.MemoryTotal - freeMemory
	}

	freeDisk := routeros.ParseInt64(row["free-hdd-space"])
	snapshot.DiskTotal = routeros.ParseInt64(row["total-hdd-space"])
	if snapshot.DiskTotal > 0 {
		snapshot.DiskUsed = snapshot.DiskTotal - freeDisk
	}
}

// temperatureFromHealth handles both health layouts: one row per sensor
// with name/value pairs, or a single row with direct keys.
func temperatureFromHealth(rows []map[string]string) *int {
	for _, row := range rows {
		if strings.EqualFold(strings.TrimSpace(row["name"]), "temperature") {
			value := int(routeros.ParseFloat64(row["value"]))
			return &value
		}
		if raw, ok := row["temperature"]; ok && strings.TrimSpace(raw) != "" {
			value := int(routeros.ParseFloat64(raw))
			return &value
		}
	}
	return nil
}

func mapInterfaceRows(rows []map[string]string) []InterfaceReading {
	items := make([]InterfaceReading, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row["name"])
		if name == "" {
			continue
		}
		items = append(items, InterfaceReading{
			Name:       name,
			Comment:    strings.TrimSpace(row["comment"]),
			MACAddress: strings.ToUpper(strings.TrimSpace(row["mac-address"])),
			Running:    routeros.BoolFromWord(row["running"]),
			Disabled:   routeros.BoolFromWord(row["disabled"]),
			RxBytes:    routeros.ParseInt64(row["rx-byte"]),
			TxBytes:    routeros.ParseInt64(row["tx-byte"]),
		})
	}
	return items
}
