package metrics

import (
	"math"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
)

// ComputeRate converts two byte-counter samples into bits per second.
// A non-positive elapsed keeps the rate at 0. A negative delta means the
// counter was reset (reboot); the rate is 0 for this sample only, the
// stored counter still advances so the next sample is clean.
func ComputeRate(prevCounter, currCounter int64, elapsed time.Duration) int64 {
	if elapsed <= 0 {
		return 0
	}
	delta := currCounter - prevCounter
	if delta < 0 {
		return 0
	}
	return int64(math.Round(float64(delta) * 8 / elapsed.Seconds()))
}

// BuildStates merges current readings into the previous per-interface rows.
// Interfaces seen for the first time get a fresh row with zero rates.
func BuildStates(deviceID int64, prev map[string]model.InterfaceState, readings []InterfaceReading, now time.Time) []model.InterfaceState {
	states := make([]model.InterfaceState, 0, len(readings))
	for _, reading := range readings {
		state := model.InterfaceState{
			DeviceID:      deviceID,
			Name:          reading.Name,
			Comment:       reading.Comment,
			MACAddress:    reading.MACAddress,
			Running:       reading.Running,
			Disabled:      reading.Disabled,
			RxBytes:       reading.RxBytes,
			TxBytes:       reading.TxBytes,
			LastUpdatedAt: now,
		}
		if previous, ok := prev[reading.Name]; ok {
			elapsed := now.Sub(previous.LastUpdatedAt)
			state.RxRate = ComputeRate(previous.RxBytes, reading.RxBytes, elapsed)
			state.TxRate = ComputeRate(previous.TxBytes, reading.TxBytes, elapsed)
		}
		states = append(states, state)
	}
	return states
}
