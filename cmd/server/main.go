package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mikro-fleet/monitor/internal/config"
	httpapi "github.com/mikro-fleet/monitor/internal/http"
	"github.com/mikro-fleet/monitor/internal/logging"
	"github.com/mikro-fleet/monitor/internal/model"
	"github.com/mikro-fleet/monitor/internal/notify"
	"github.com/mikro-fleet/monitor/internal/poller"
	"github.com/mikro-fleet/monitor/internal/routeros"
	"github.com/mikro-fleet/monitor/internal/services/alert"
	"github.com/mikro-fleet/monitor/internal/services/metrics"
	"github.com/mikro-fleet/monitor/internal/services/netwatch"
	"github.com/mikro-fleet/monitor/internal/services/probe"
	"github.com/mikro-fleet/monitor/internal/services/refresh"
	"github.com/mikro-fleet/monitor/internal/services/session"
	"github.com/mikro-fleet/monitor/internal/storage"
)

// passthroughDecryptor serves deployments that store plain secrets. Real
// encryption is owned by an external collaborator and slots in here.
type passthroughDecryptor struct{}

func (passthroughDecryptor) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		os.Exit(1)
	}

	repo, err := storage.New(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	hub := httpapi.NewHub(logging.Component(logger, "ws"))
	defer hub.Close()

	notifiers := []alert.Notifier{hub}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.WebhookURL, cfg.WebhookTimeout, logging.Component(logger, "webhook")))
	}
	emitter := alert.NewEmitter(repo, cfg.AlertDedupWindow, logging.Component(logger, "alerts"), notifiers...)

	opener := func(ctx context.Context, device model.Device) (refresh.Session, error) {
		sessionCfg := routeros.ConfigForDevice(device)
		sessionCfg.Timeout = cfg.ConnectTimeout
		return routeros.Open(ctx, sessionCfg, logging.Component(logger, "routeros"))
	}

	orchestrator := refresh.NewOrchestrator(
		opener,
		repo,
		emitter,
		metrics.NewCollector(logging.Component(logger, "metrics")),
		netwatch.NewReconciler(repo, emitter, logging.Component(logger, "netwatch")),
		probe.NewProber(repo, emitter, cfg.ProbeConcurrency, cfg.ProbeTimeout, logging.Component(logger, "probe")),
		session.NewTracker(repo, emitter, logging.Component(logger, "sessions")),
		logging.Component(logger, "refresh"),
	)

	devicePoller := poller.New(repo, orchestrator, passthroughDecryptor{}, cfg.PollInterval, logging.Component(logger, "poller"))
	go devicePoller.Run(ctx)

	schedule := cron.New()
	if _, err := schedule.AddFunc(cfg.FullSyncCron, devicePoller.TriggerFullSync); err != nil {
		logger.Error("invalid full sync schedule", "spec", cfg.FullSyncCron, "err", err)
		os.Exit(1)
	}
	schedule.Start()
	defer schedule.Stop()

	// Seed fresh data right away instead of waiting for the first tick.
	devicePoller.TriggerFullSync()

	api := httpapi.New(repo, devicePoller, hub, logging.Component(logger, "http"))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", httpServer.Addr)
	if err := httpapi.RunServer(ctx, httpServer, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
