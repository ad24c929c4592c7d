// Package poller drives the fleet refresh loop. Every tick runs a cheap
// liveness pass; full syncs and targeted refreshes arrive over the
// trigger channel from the cron schedule and the HTTP API.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
	"github.com/mikro-fleet/monitor/internal/services/refresh"
)

// Registry lists the devices to poll.
type Registry interface {
	ListDevices(ctx context.Context) ([]model.Device, error)
	GetDevice(ctx context.Context, id int64) (model.Device, error)
}

// Refresher runs one device cycle.
type Refresher interface {
	Refresh(ctx context.Context, device model.Device, opts refresh.Options) error
}

// Decryptor resolves the stored secret to a usable password. Encryption
// is owned by an external collaborator.
type Decryptor interface {
	Decrypt(ciphertext string) (string, error)
}

// Request asks for a refresh. DeviceID 0 addresses the whole fleet.
type Request struct {
	DeviceID int64
	Options  refresh.Options
}

// Poller owns the tick loop and the trigger channel.
type Poller struct {
	registry  Registry
	refresher Refresher
	decryptor Decryptor
	interval  time.Duration
	refreshCh chan Request
	logger    *slog.Logger
}

func New(registry Registry, refresher Refresher, decryptor Decryptor, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		registry:  registry,
		refresher: refresher,
		decryptor: decryptor,
		interval:  interval,
		refreshCh: make(chan Request, 16),
		logger:    logger,
	}
}

// TriggerRefresh queues a refresh without blocking. A full channel drops
// the request; the next tick covers the device anyway.
func (p *Poller) TriggerRefresh(deviceID int64, opts refresh.Options) {
	select {
	case p.refreshCh <- Request{DeviceID: deviceID, Options: opts}:
	default:
		p.logger.Warn("refresh trigger dropped, queue full", "device", deviceID)
	}
}

// TriggerFullSync queues a fleet-wide full sync. The cron schedule calls
// this; the poller goroutine does the work.
func (p *Poller) TriggerFullSync() {
	p.TriggerRefresh(0, refresh.FullSync())
}

// Run loops until ctx is cancelled. Ticks run identity-only liveness
// passes over the fleet.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.refreshCh:
			p.serve(ctx, req)
		case <-ticker.C:
			p.pollFleet(ctx, refresh.Options{})
		}
	}
}

func (p *Poller) serve(ctx context.Context, req Request) {
	if req.DeviceID == 0 {
		p.pollFleet(ctx, req.Options)
		return
	}
	device, err := p.registry.GetDevice(ctx, req.DeviceID)
	if err != nil {
		p.logger.Warn("refresh trigger for unknown device", "device", req.DeviceID, "err", err)
		return
	}
	p.pollOne(ctx, device, req.Options)
}

// pollFleet refreshes every device concurrently. Maintenance devices are
// skipped so planned work never flaps status or raises alerts.
func (p *Poller) pollFleet(ctx context.Context, opts refresh.Options) {
	devices, err := p.registry.ListDevices(ctx)
	if err != nil {
		p.logger.Error("list devices failed", "err", err)
		return
	}

	var wg sync.WaitGroup
	for _, device := range devices {
		if device.Status == model.DeviceStatusMaintenance {
			p.logger.Debug("skipping device in maintenance", "device", device.ID)
			continue
		}
		wg.Add(1)
		go func(device model.Device) {
			defer wg.Done()
			p.pollOne(ctx, device, opts)
		}(device)
	}
	wg.Wait()
}

func (p *Poller) pollOne(ctx context.Context, device model.Device, opts refresh.Options) {
	secret, err := p.decryptor.Decrypt(device.Secret)
	if err != nil {
		p.logger.Error("decrypt device secret failed", "device", device.ID, "err", err)
		return
	}
	device.Secret = secret

	if err := p.refresher.Refresh(ctx, device, opts); err != nil {
		if errors.Is(err, refresh.ErrInFlight) {
			return
		}
		p.logger.Error("device refresh failed",
			"device", device.ID, "address", device.Address, "err", err)
	}
}
