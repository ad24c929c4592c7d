package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
	"github.com/mikro-fleet/monitor/internal/services/refresh"
)

type fakeRegistry struct {
	devices []model.Device
}

func (r *fakeRegistry) ListDevices(_ context.Context) ([]model.Device, error) {
	return r.devices, nil
}

func (r *fakeRegistry) GetDevice(_ context.Context, id int64) (model.Device, error) {
	for _, device := range r.devices {
		if device.ID == id {
			return device, nil
		}
	}
	return model.Device{}, fmt.Errorf("device %d not found", id)
}

type refreshCall struct {
	device model.Device
	opts   refresh.Options
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls []refreshCall
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, device model.Device, opts refresh.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, refreshCall{device: device, opts: opts})
	return f.err
}

func (f *fakeRefresher) snapshot() []refreshCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]refreshCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type prefixDecryptor struct{}

func (prefixDecryptor) Decrypt(ciphertext string) (string, error) {
	return "plain:" + ciphertext, nil
}

func testPoller(registry Registry, refresher Refresher) *Poller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(registry, refresher, prefixDecryptor{}, time.Hour, logger)
}

func TestPollFleetRefreshesEachDevice(t *testing.T) {
	registry := &fakeRegistry{devices: []model.Device{
		{ID: 1, Address: "10.0.0.1", Secret: "s1"},
		{ID: 2, Address: "10.0.0.2", Secret: "s2"},
	}}
	refresher := &fakeRefresher{}
	p := testPoller(registry, refresher)

	p.pollFleet(context.Background(), refresh.FullSync())

	calls := refresher.snapshot()
	if len(calls) != 2 {
		t.Fatalf("expected both devices refreshed, got %d", len(calls))
	}
	for _, call := range calls {
		if !call.opts.Full {
			t.Fatalf("options must propagate, got %+v", call.opts)
		}
		if call.device.Secret != "plain:s1" && call.device.Secret != "plain:s2" {
			t.Fatalf("secret must be decrypted before refresh, got %q", call.device.Secret)
		}
	}
}

func TestPollFleetSkipsMaintenanceDevices(t *testing.T) {
	registry := &fakeRegistry{devices: []model.Device{
		{ID: 1, Status: model.DeviceStatusMaintenance},
		{ID: 2, Status: model.DeviceStatusOnline},
	}}
	refresher := &fakeRefresher{}
	p := testPoller(registry, refresher)

	p.pollFleet(context.Background(), refresh.Options{})

	calls := refresher.snapshot()
	if len(calls) != 1 || calls[0].device.ID != 2 {
		t.Fatalf("maintenance device must be skipped, got %+v", calls)
	}
}

func TestServeTargetedRefresh(t *testing.T) {
	registry := &fakeRegistry{devices: []model.Device{{ID: 7, Secret: "s7"}}}
	refresher := &fakeRefresher{}
	p := testPoller(registry, refresher)

	p.serve(context.Background(), Request{DeviceID: 7, Options: refresh.Options{Netwatch: true}})

	calls := refresher.snapshot()
	if len(calls) != 1 || calls[0].device.ID != 7 || !calls[0].opts.Netwatch {
		t.Fatalf("targeted refresh wrong: %+v", calls)
	}
}

func TestRunServesTriggers(t *testing.T) {
	registry := &fakeRegistry{devices: []model.Device{{ID: 1, Secret: "s1"}}}
	refresher := &fakeRefresher{}
	p := testPoller(registry, refresher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	p.TriggerFullSync()
	deadline := time.After(2 * time.Second)
	for len(refresher.snapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("trigger was never served")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestInFlightErrorIsSilent(t *testing.T) {
	registry := &fakeRegistry{devices: []model.Device{{ID: 1}}}
	refresher := &fakeRefresher{err: errors.New("boom")}
	p := testPoller(registry, refresher)

	// Both error paths must be swallowed; pollOne never panics or retries.
	p.pollOne(context.Background(), model.Device{ID: 1}, refresh.Options{})
	refresher.err = refresh.ErrInFlight
	p.pollOne(context.Background(), model.Device{ID: 1}, refresh.Options{})

	if len(refresher.snapshot()) != 2 {
		t.Fatalf("both refreshes must be attempted once")
	}
}
