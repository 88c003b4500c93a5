package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/services/scheduler"
)

// SchedulerHandler exposes background job status and manual triggers
type SchedulerHandler struct {
	scheduler *scheduler.Service
	logger    arbor.ILogger
}

func NewSchedulerHandler(schedulerSvc *scheduler.Service, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: schedulerSvc,
		logger:    logger,
	}
}

// JobsHandler handles GET /api/scheduler/jobs
func (h *SchedulerHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": h.scheduler.IsRunning(),
		"jobs":    h.scheduler.Status(),
	})
}

// RunJobHandler handles POST /api/scheduler/jobs/{name}/run
func (h *SchedulerHandler) RunJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/scheduler/jobs/")
	name := strings.TrimSuffix(path, "/run")
	if name == "" || name == path {
		WriteError(w, http.StatusBadRequest, "Job name required")
		return
	}

	if err := h.scheduler.RunJobNow(name); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.Info().Str("job", name).Msg("Manually triggered job")
	WriteSuccess(w, "Job "+name+" triggered")
}
