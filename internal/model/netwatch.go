package model

import (
	"strings"
	"time"
)

// TargetStatus is the observed state of one watch target.
type TargetStatus string

const (
	TargetStatusUnknown TargetStatus = "unknown"
	TargetStatusUp      TargetStatus = "up"
	TargetStatusDown    TargetStatus = "down"
)

// Settled reports whether the status is a concrete up/down observation.
// Transitions through unknown never raise alerts.
func (s TargetStatus) Settled() bool {
	return s == TargetStatusUp || s == TargetStatusDown
}

// ParseTargetStatus maps remote netwatch status text to a TargetStatus.
func ParseTargetStatus(raw string) TargetStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up":
		return TargetStatusUp
	case "down":
		return TargetStatusDown
	default:
		return TargetStatusUnknown
	}
}

// WatchTarget is one netwatch host row, unique per (device_id, host).
type WatchTarget struct {
	DeviceID          int64        `json:"device_id"`
	Host              string       `json:"host"`
	Name              string       `json:"name"`
	Status            TargetStatus `json:"status"`
	LastUpAt          *time.Time   `json:"last_up_at,omitempty"`
	LastDownAt        *time.Time   `json:"last_down_at,omitempty"`
	LatencyMs         *int64       `json:"latency_ms,omitempty"`
	PacketLossPercent float64      `json:"packet_loss_percent"`
	IntervalSeconds   int          `json:"interval_seconds"`
	Disabled          bool         `json:"disabled"`
	LastCheckedAt     time.Time    `json:"last_checked_at"`
}
