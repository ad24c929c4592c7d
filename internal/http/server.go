// Package httpapi exposes the persisted fleet state over a JSON API and
// streams emitted alerts over a websocket feed.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mikro-fleet/monitor/internal/model"
	"github.com/mikro-fleet/monitor/internal/services/refresh"
	"github.com/mikro-fleet/monitor/internal/storage"
)

// RefreshTrigger queues refresh work without blocking the request.
type RefreshTrigger interface {
	TriggerRefresh(deviceID int64, opts refresh.Options)
}

type API struct {
	repo    *storage.Repository
	trigger RefreshTrigger
	hub     *Hub
	logger  *slog.Logger
}

func New(repo *storage.Repository, trigger RefreshTrigger, hub *Hub, logger *slog.Logger) *API {
	return &API{repo: repo, trigger: trigger, hub: hub, logger: logger}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON(a.logger))
	r.Use(middleware.Timeout(20 * time.Second))
	r.Use(RequestLogger(a.logger))

	r.Get("/healthz", a.health)
	r.Route("/api", func(api chi.Router) {
		api.Get("/devices", a.listDevices)
		api.Get("/devices/{id}", a.getDevice)
		api.Post("/devices/{id}/refresh", a.refreshDevice)
		api.Get("/devices/{id}/interfaces", a.listInterfaces)
		api.Get("/devices/{id}/targets", a.listWatchTargets)
		api.Delete("/devices/{id}/targets/{host}", a.deleteWatchTarget)
		api.Get("/devices/{id}/metrics", a.listMetrics)
		api.Get("/devices/{id}/sessions", a.listSessions)
		api.Get("/alerts", a.listAlerts)
		api.Get("/alerts/ws", a.hub.ServeHTTP)
	})
	return r
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := a.repo.ListDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": devices})
}

func (a *API) getDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := a.deviceFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// refreshDevice queues a cycle for the device. full=true also collects
// metrics and interface counters.
func (a *API) refreshDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := a.deviceFromPath(w, r)
	if !ok {
		return
	}

	opts := refresh.Options{Netwatch: true, Probe: true, Sessions: true}
	if raw := strings.TrimSpace(r.URL.Query().Get("full")); raw != "" {
		full, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_full_flag", "full must be true or false")
			return
		}
		if full {
			opts = refresh.FullSync()
		}
	}
	a.trigger.TriggerRefresh(device.ID, opts)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) listInterfaces(w http.ResponseWriter, r *http.Request) {
	device, ok := a.deviceFromPath(w, r)
	if !ok {
		return
	}
	states, err := a.repo.LoadInterfaceStates(r.Context(), device.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	items := make([]model.InterfaceState, 0, len(states))
	for _, state := range states {
		items = append(items, state)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) listWatchTargets(w http.ResponseWriter, r *http.Request) {
	device, ok := a.deviceFromPath(w, r)
	if !ok {
		return
	}
	targets, err := a.repo.ListWatchTargets(r.Context(), device.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": targets})
}

func (a *API) deleteWatchTarget(w http.ResponseWriter, r *http.Request) {
	device, ok := a.deviceFromPath(w, r)
	if !ok {
		return
	}
	host := chi.URLParam(r, "host")
	if err := a.repo.DeleteWatchTarget(r.Context(), device.ID, host); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Watch target not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) listMetrics(w http.ResponseWriter, r *http.Request) {
	device, ok := a.deviceFromPath(w, r)
	if !ok {
		return
	}
	limit := parsePositiveInt(r.URL.Query().Get("limit"), 100)
	snapshots, err := a.repo.ListMetricSnapshots(r.Context(), device.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": snapshots})
}

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	device, ok := a.deviceFromPath(w, r)
	if !ok {
		return
	}
	sessions, err := a.repo.LoadActiveSessions(r.Context(), device.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	items := make([]model.ActiveSession, 0, len(sessions))
	for _, sess := range sessions {
		items = append(items, sess)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	filter := storage.AlertFilter{
		Limit: parsePositiveInt(r.URL.Query().Get("limit"), 100),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("device")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_device_filter", "device must be an integer id")
			return
		}
		filter.DeviceID = id
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		filter.Type = model.AlertType(raw)
	}
	alerts, err := a.repo.ListAlerts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": alerts})
}

// deviceFromPath resolves {id} and writes the error response itself when
// the device cannot be served.
func (a *API) deviceFromPath(w http.ResponseWriter, r *http.Request) (model.Device, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid_device_id", "device id must be a positive integer")
		return model.Device{}, false
	}
	device, err := a.repo.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Device not found")
			return model.Device{}, false
		}
		writeError(w, http.StatusInternalServerError, "get_failed", err.Error())
		return model.Device{}, false
	}
	return device, true
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// RunServer starts and gracefully stops the HTTP server with context
// cancellation.
func RunServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "err", err)
			return err
		}
		return nil
	}
}
