// Package refresh sequences one device's reconciliation cycle: open a
// session, fetch, reconcile, probe, track, close. Cycles for the same
// device never overlap.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
	"github.com/mikro-fleet/monitor/internal/routeros"
	"github.com/mikro-fleet/monitor/internal/services/alert"
	"github.com/mikro-fleet/monitor/internal/services/metrics"
	"github.com/mikro-fleet/monitor/internal/services/netwatch"
	"github.com/mikro-fleet/monitor/internal/services/probe"
	"github.com/mikro-fleet/monitor/internal/services/session"
)

// ErrInFlight reports that a refresh for the device is already running.
// The request is skipped, not queued.
var ErrInFlight = errors.New("refresh already in flight")

// DefaultCycleTimeout bounds one whole device cycle. Without it a wedged
// connection would hold the in-flight slot forever and the device would
// never be refreshed again.
const DefaultCycleTimeout = 2 * time.Minute

// Session is an open device connection. Close is best-effort and safe to
// call more than once.
type Session interface {
	routeros.Runner
	Close()
}

// Opener dials and authenticates a session for one device. Credentials
// are resolved by the caller before the device record reaches it.
type Opener func(ctx context.Context, device model.Device) (Session, error)

// Store is the slice of the repository the orchestrator writes directly.
type Store interface {
	UpdateDeviceStatus(ctx context.Context, id int64, status model.DeviceStatus, lastSeen *time.Time) error
	UpdateDeviceIdentity(ctx context.Context, id int64, identity, boardName, serialNumber, osVersion string) error
	InsertMetricSnapshot(ctx context.Context, snapshot model.MetricSnapshot) error
	LoadInterfaceStates(ctx context.Context, deviceID int64) (map[string]model.InterfaceState, error)
	UpsertInterfaceStates(ctx context.Context, states []model.InterfaceState) error
	ListWatchTargets(ctx context.Context, deviceID int64) ([]model.WatchTarget, error)
}

// Alerts receives device status transition alerts.
type Alerts interface {
	Emit(ctx context.Context, req alert.Request) (bool, error)
}

// Options selects which stages run this tick. Identity always runs.
type Options struct {
	Full     bool
	Netwatch bool
	Probe    bool
	Sessions bool
}

// FullSync enables every stage.
func FullSync() Options {
	return Options{Full: true, Netwatch: true, Probe: true, Sessions: true}
}

// Orchestrator runs refresh cycles. One instance serves the whole fleet;
// the in-flight map guards each device against overlapping cycles.
type Orchestrator struct {
	open         Opener
	store        Store
	alerts       Alerts
	collector    *metrics.Collector
	netwatch     *netwatch.Reconciler
	prober       *probe.Prober
	tracker      *session.Tracker
	logger       *slog.Logger
	now          func() time.Time
	cycleTimeout time.Duration

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewOrchestrator(
	open Opener,
	store Store,
	alerts Alerts,
	collector *metrics.Collector,
	reconciler *netwatch.Reconciler,
	prober *probe.Prober,
	tracker *session.Tracker,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		open:         open,
		store:        store,
		alerts:       alerts,
		collector:    collector,
		netwatch:     reconciler,
		prober:       prober,
		tracker:      tracker,
		logger:       logger,
		now:          time.Now,
		cycleTimeout: DefaultCycleTimeout,
		inFlight:     make(map[int64]struct{}),
	}
}

// Refresh runs one cycle for the device. Connectivity failures mark the
// device offline; any other failure is reported without touching status.
func (o *Orchestrator) Refresh(ctx context.Context, device model.Device, opts Options) error {
	if !o.begin(device.ID) {
		o.logger.Debug("refresh skipped, cycle in flight", "device", device.ID)
		return ErrInFlight
	}
	defer o.end(device.ID)

	ctx, cancel := context.WithTimeout(ctx, o.cycleTimeout)
	defer cancel()

	sess, err := o.open(ctx, device)
	if err != nil {
		return o.connectFailure(ctx, device, fmt.Errorf("open session: %w", err))
	}
	defer sess.Close()

	var errs []error

	identity, err := o.collector.FetchIdentity(ctx, sess)
	if err != nil {
		if routeros.IsConnectError(err) {
			return o.connectFailure(ctx, device, err)
		}
		errs = append(errs, fmt.Errorf("fetch identity: %w", err))
	} else {
		o.markOnline(ctx, &device, identity)
	}

	if opts.Full {
		if err := o.fullSync(ctx, sess, device); err != nil {
			if routeros.IsConnectError(err) {
				return o.connectFailure(ctx, device, errors.Join(append(errs, err)...))
			}
			errs = append(errs, err)
		}
	}
	if opts.Netwatch {
		result := o.netwatch.SyncOne(ctx, sess, device)
		for _, msg := range result.Errors {
			errs = append(errs, fmt.Errorf("netwatch: %s", msg))
		}
	}
	if opts.Probe {
		targets, err := o.store.ListWatchTargets(ctx, device.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list watch targets: %w", err))
		} else {
			o.prober.ProbeAll(ctx, sess, device, targets)
		}
	}
	if opts.Sessions {
		current, err := o.tracker.FetchActive(ctx, sess, device.ID)
		if err != nil {
			errs = append(errs, err)
		} else if _, err := o.tracker.Track(ctx, device, current); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (o *Orchestrator) fullSync(ctx context.Context, sess Session, device model.Device) error {
	snapshot, err := o.collector.FetchSnapshot(ctx, sess)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	var errs []error
	if err := o.store.UpdateDeviceIdentity(ctx, device.ID,
		snapshot.Identity, snapshot.BoardName, snapshot.SerialNumber, snapshot.OSVersion); err != nil {
		errs = append(errs, fmt.Errorf("update identity: %w", err))
	}
	if err := o.store.InsertMetricSnapshot(ctx, model.MetricSnapshot{
		DeviceID:      device.ID,
		CollectedAt:   snapshot.CollectedAt,
		CPULoad:       snapshot.CPULoad,
		MemoryUsed:    snapshot.MemoryUsed,
		MemoryTotal:   snapshot.MemoryTotal,
		DiskUsed:      snapshot.DiskUsed,
		DiskTotal:     snapshot.DiskTotal,
		UptimeSeconds: snapshot.UptimeSeconds,
		Temperature:   snapshot.Temperature,
	}); err != nil {
		errs = append(errs, fmt.Errorf("insert metric snapshot: %w", err))
	}

	prev, err := o.store.LoadInterfaceStates(ctx, device.ID)
	if err != nil {
		errs = append(errs, fmt.Errorf("load interface states: %w", err))
		return errors.Join(errs...)
	}
	states := metrics.BuildStates(device.ID, prev, snapshot.Interfaces, snapshot.CollectedAt)
	if err := o.store.UpsertInterfaceStates(ctx, states); err != nil {
		errs = append(errs, fmt.Errorf("upsert interface states: %w", err))
	}
	return errors.Join(errs...)
}

// markOnline records a successful liveness check. The offline to online
// flip is the only transition that alerts; unknown settles silently.
func (o *Orchestrator) markOnline(ctx context.Context, device *model.Device, identity string) {
	wasOffline := device.Status == model.DeviceStatusOffline
	now := o.now().UTC()
	if err := o.store.UpdateDeviceStatus(ctx, device.ID, model.DeviceStatusOnline, &now); err != nil {
		o.logger.Warn("update device status failed", "device", device.ID, "err", err)
		return
	}
	device.Status = model.DeviceStatusOnline
	if identity != "" {
		device.Identity = identity
	}

	if wasOffline {
		o.emitStatusAlert(ctx, *device, model.DeviceStatusOnline, model.AlertSeverityInfo,
			fmt.Sprintf("device %s is back online", device.DisplayName()))
	}
}

// connectFailure marks the device offline and alerts only when it was
// previously online.
func (o *Orchestrator) connectFailure(ctx context.Context, device model.Device, cause error) error {
	if err := o.store.UpdateDeviceStatus(ctx, device.ID, model.DeviceStatusOffline, nil); err != nil {
		o.logger.Warn("update device status failed", "device", device.ID, "err", err)
	}
	if device.Status == model.DeviceStatusOnline {
		o.emitStatusAlert(ctx, device, model.DeviceStatusOffline, model.AlertSeverityCritical,
			fmt.Sprintf("device %s is unreachable", device.DisplayName()))
	}
	return cause
}

func (o *Orchestrator) emitStatusAlert(ctx context.Context, device model.Device, status model.DeviceStatus, severity model.AlertSeverity, message string) {
	if _, err := o.alerts.Emit(ctx, alert.Request{
		Device:   device,
		Target:   "status",
		Type:     model.AlertTypeDeviceStatus,
		Severity: severity,
		State:    string(status),
		Message:  message,
	}); err != nil {
		o.logger.Warn("status alert failed", "device", device.ID, "err", err)
	}
}

func (o *Orchestrator) begin(deviceID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, running := o.inFlight[deviceID]; running {
		return false
	}
	o.inFlight[deviceID] = struct{}{}
	return true
}

func (o *Orchestrator) end(deviceID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, deviceID)
}
