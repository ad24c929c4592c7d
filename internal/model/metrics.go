package model

import "time"

// MetricSnapshot is one immutable resource sample for a device.
// Rows are appended every full-sync cycle and never mutated.
type MetricSnapshot struct {
	ID            int64     `json:"id"`
	DeviceID      int64     `json:"device_id"`
	CollectedAt   time.Time `json:"collected_at"`
	CPULoad       int       `json:"cpu_load"`
	MemoryUsed    int64     `json:"memory_used"`
	MemoryTotal   int64     `json:"memory_total"`
	DiskUsed      int64     `json:"disk_used"`
	DiskTotal     int64     `json:"disk_total"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Temperature   *int      `json:"temperature,omitempty"`
}

// InterfaceState is the per-interface row keyed by (device_id, name).
// RxBytes/TxBytes are raw monotonic counters from the device; RxRate/TxRate
// are derived bits-per-second values, never a raw counter diff.
type InterfaceState struct {
	DeviceID      int64     `json:"device_id"`
	Name          string    `json:"name"`
	Comment       string    `json:"comment,omitempty"`
	MACAddress    string    `json:"mac_address,omitempty"`
	Running       bool      `json:"running"`
	Disabled      bool      `json:"disabled"`
	RxBytes       int64     `json:"rx_bytes"`
	TxBytes       int64     `json:"tx_bytes"`
	RxRate        int64     `json:"rx_rate"`
	TxRate        int64     `json:"tx_rate"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}
