package model

import "time"

// AlertType classifies what kind of transition produced an alert.
type AlertType string

const (
	AlertTypeDeviceStatus AlertType = "device_status"
	AlertTypeWatchTarget  AlertType = "watch_target"
	AlertTypePerformance  AlertType = "performance"
	AlertTypeSession      AlertType = "session"
)

// AlertSeverity ranks alert urgency for downstream notifiers.
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert is an append-only record of a qualifying state transition.
// The dedup key is (device_id, target, type); State stores the settled state
// at emission time so a repeated identical condition can be suppressed while
// a genuine flip still gets through.
type Alert struct {
	ID        int64         `json:"id"`
	DeviceID  int64         `json:"device_id"`
	Type      AlertType     `json:"type"`
	Target    string        `json:"target"`
	Severity  AlertSeverity `json:"severity"`
	State     string        `json:"state"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
}

// Notification is the payload handed to external dispatchers on emit.
// Delivery and formatting are the dispatcher's problem.
type Notification struct {
	DeviceID   int64         `json:"device_id"`
	DeviceName string        `json:"device_name"`
	TargetHost string        `json:"target_host,omitempty"`
	TargetName string        `json:"target_name,omitempty"`
	Type       AlertType     `json:"type"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	Timestamp  time.Time     `json:"timestamp"`
}
