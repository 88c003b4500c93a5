package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/services/monitor"
)

// MetricsHandler exposes per-service counters and system status
type MetricsHandler struct {
	monitor *monitor.Monitor
	logger  arbor.ILogger
}

func NewMetricsHandler(mon *monitor.Monitor, logger arbor.ILogger) *MetricsHandler {
	return &MetricsHandler{
		monitor: mon,
		logger:  logger,
	}
}

// AllMetricsHandler returns snapshots for every tracked service
func (h *MetricsHandler) AllMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.monitor.AllSnapshots())
}

// ServiceMetricsHandler returns the snapshot for one service
func (h *MetricsHandler) ServiceMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/metrics/")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "Service name required")
		return
	}

	snapshot, ok := h.monitor.ServiceSnapshot(name)
	if !ok {
		WriteError(w, http.StatusNotFound, "Unknown service: "+name)
		return
	}
	WriteJSON(w, http.StatusOK, snapshot)
}

// StatusHandler returns the system-level summary used by the dashboard
func (h *MetricsHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.monitor.SystemSnapshot())
}
