package model

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// DeviceStatus is the reconciled reachability state of a device.
type DeviceStatus string

const (
	DeviceStatusUnknown     DeviceStatus = "unknown"
	DeviceStatusOnline      DeviceStatus = "online"
	DeviceStatusOffline     DeviceStatus = "offline"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
)

// ParseDeviceStatus maps stored text to a DeviceStatus, defaulting to unknown.
func ParseDeviceStatus(raw string) DeviceStatus {
	switch DeviceStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case DeviceStatusOnline:
		return DeviceStatusOnline
	case DeviceStatusOffline:
		return DeviceStatusOffline
	case DeviceStatusMaintenance:
		return DeviceStatusMaintenance
	default:
		return DeviceStatusUnknown
	}
}

// Device is one managed RouterOS appliance. The registry owns the record;
// the refresh engine only updates status, identity and last_seen.
type Device struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Address      string       `json:"address"`
	Port         int          `json:"port"`
	Username     string       `json:"-"`
	Secret       string       `json:"-"`
	Status       DeviceStatus `json:"status"`
	Identity     string       `json:"identity"`
	BoardName    string       `json:"board_name"`
	SerialNumber string       `json:"serial_number"`
	OSVersion    string       `json:"os_version"`
	LastSeenAt   *time.Time   `json:"last_seen_at,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// APIAddress returns host:port for the RouterOS API endpoint.
func (d Device) APIAddress() string {
	port := d.Port
	if port <= 0 {
		port = 8728
	}
	return net.JoinHostPort(strings.TrimSpace(d.Address), strconv.Itoa(port))
}

// DisplayName prefers the registry name over the reported identity.
func (d Device) DisplayName() string {
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}
	if identity := strings.TrimSpace(d.Identity); identity != "" {
		return identity
	}
	return d.Address
}
