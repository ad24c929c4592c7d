package model

import "time"

// ActiveSession is an ephemeral row describing one remote session currently
// observed on a device. Rows exist only while the session keeps appearing in
// snapshots; the tracked set is replaced wholesale every cycle.
type ActiveSession struct {
	DeviceID   int64     `json:"device_id"`
	Key        string    `json:"key"`
	Service    string    `json:"service,omitempty"`
	Address    string    `json:"address,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	ObservedAt time.Time `json:"observed_at"`
}
