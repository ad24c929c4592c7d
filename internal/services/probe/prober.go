// Package probe pings watch targets over an already-open device session
// with a bounded worker pool.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
	"github.com/mikro-fleet/monitor/internal/routeros"
	"github.com/mikro-fleet/monitor/internal/services/alert"
)

const (
	// DefaultConcurrency bounds in-flight pings on one session.
	DefaultConcurrency = 5

	// DefaultTimeout caps one ping command. The timer race aborts exactly
	// that probe; pool siblings keep running.
	DefaultTimeout = 10 * time.Second

	pingCount = 3

	// latencyAlertThresholdMs is the round-trip time above which a
	// reachable target still raises a performance alert.
	latencyAlertThresholdMs = 100
)

// Store persists probe outcomes without touching reconciliation columns.
type Store interface {
	UpdateWatchTargetProbe(ctx context.Context, deviceID int64, host string, latencyMs *int64, packetLossPercent float64) error
}

// Alerts receives degraded-target performance alerts.
type Alerts interface {
	Emit(ctx context.Context, req alert.Request) (bool, error)
}

// Outcome is one target's probe result. Latency stays nil when every
// packet was lost or the ping command itself failed.
type Outcome struct {
	Host              string
	LatencyMs         *int64
	PacketLossPercent float64
	Err               error
}

// Prober fans pings out over a fixed-size worker pool. The session is
// shared; the API multiplexes concurrent commands on one connection.
type Prober struct {
	store       Store
	alerts      Alerts
	logger      *slog.Logger
	concurrency int
	timeout     time.Duration
}

func NewProber(store Store, alerts Alerts, concurrency int, timeout time.Duration, logger *slog.Logger) *Prober {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{store: store, alerts: alerts, logger: logger, concurrency: concurrency, timeout: timeout}
}

// ProbeAll pings every enabled target, persists each outcome, and raises
// performance alerts for degraded ones. Per-target failures never abort
// the batch.
func (p *Prober) ProbeAll(ctx context.Context, runner routeros.Runner, device model.Device, targets []model.WatchTarget) []Outcome {
	jobs := make(chan model.WatchTarget)
	results := make(chan Outcome)

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				results <- p.probeOne(ctx, runner, target)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, target := range targets {
			if target.Disabled {
				continue
			}
			select {
			case jobs <- target:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, 0, len(targets))
	for outcome := range results {
		p.record(ctx, device, outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (p *Prober) probeOne(ctx context.Context, runner routeros.Runner, target model.WatchTarget) Outcome {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := runner.Run(probeCtx, "/ping", map[string]string{
		"address": target.Host,
		"count":   strconv.Itoa(pingCount),
	})
	if err != nil {
		// Unreachable or timed-out targets record null latency and
		// full loss; the failure stays scoped to this target.
		return Outcome{Host: target.Host, PacketLossPercent: 100, Err: err}
	}
	return summarize(target.Host, rows)
}

// summarize reads the final reply row, which carries the aggregate
// sent/received counts and the average round-trip time.
func summarize(host string, rows []map[string]string) Outcome {
	outcome := Outcome{Host: host, PacketLossPercent: 100}
	if len(rows) == 0 {
		return outcome
	}
	last := rows[len(rows)-1]

	sent := routeros.ParseInt64(last["sent"])
	received := routeros.ParseInt64(last["received"])
	if sent > 0 {
		outcome.PacketLossPercent = float64(sent-received) / float64(sent) * 100
	}
	if received == 0 {
		return outcome
	}

	rtt := routeros.FirstNonEmpty(last["avg-rtt"], last["time"])
	if ms, ok := parseLatencyMs(rtt); ok {
		outcome.LatencyMs = &ms
	}
	return outcome
}

func (p *Prober) record(ctx context.Context, device model.Device, outcome Outcome) {
	if outcome.Err != nil {
		p.logger.Debug("probe failed",
			"device", device.ID, "host", outcome.Host, "err", outcome.Err)
	}
	if err := p.store.UpdateWatchTargetProbe(ctx, device.ID, outcome.Host, outcome.LatencyMs, outcome.PacketLossPercent); err != nil {
		p.logger.Warn("persist probe result failed",
			"device", device.ID, "host", outcome.Host, "err", err)
		return
	}

	degradedLatency := outcome.LatencyMs != nil && *outcome.LatencyMs > latencyAlertThresholdMs
	if !degradedLatency && outcome.PacketLossPercent <= 0 {
		return
	}

	message := fmt.Sprintf("target %s degraded: %.0f%% packet loss", outcome.Host, outcome.PacketLossPercent)
	state := "loss"
	if degradedLatency {
		message = fmt.Sprintf("target %s degraded: latency %dms", outcome.Host, *outcome.LatencyMs)
		state = "latency"
	}
	if _, err := p.alerts.Emit(ctx, alert.Request{
		Device:   device,
		Target:   outcome.Host,
		Type:     model.AlertTypePerformance,
		Severity: model.AlertSeverityWarning,
		State:    state,
		Message:  message,
	}); err != nil {
		p.logger.Warn("performance alert failed",
			"device", device.ID, "host", outcome.Host, "err", err)
	}
}
