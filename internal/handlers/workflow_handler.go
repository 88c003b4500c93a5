package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/services/workflow"
)

// WorkflowHandler exposes the session state machine over HTTP
type WorkflowHandler struct {
	controller *workflow.Controller
	logger     arbor.ILogger
}

func NewWorkflowHandler(controller *workflow.Controller, logger arbor.ILogger) *WorkflowHandler {
	return &WorkflowHandler{
		controller: controller,
		logger:     logger,
	}
}

type commandRequest struct {
	Command   string `json:"command" validate:"required"`
	SessionID string `json:"session_id"`
}

// CommandHandler processes a workflow command, the same path voice
// commands take
func (h *WorkflowHandler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req commandRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	var result *workflow.CommandResult
	var err error
	if req.SessionID != "" {
		result, err = h.controller.ProcessSessionCommand(r.Context(), req.SessionID, req.Command)
	} else {
		result, err = h.controller.ProcessCommand(r.Context(), req.Command)
	}

	if err != nil {
		if result != nil {
			WriteJSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// CreateSessionHandler starts a new counselor session
func (h *WorkflowHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	session, err := h.controller.CreateSession(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "created",
		"session_id": session.ID,
	})
}

// ListSessionsHandler returns all active sessions
func (h *WorkflowHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sessions := h.controller.GetAllSessions()
	summaries := make([]map[string]interface{}, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, session.Summary())
	}

	WriteJSON(w, http.StatusOK, summaries)
}

// SessionHandler handles GET and DELETE on /api/workflow/session/{id}
func (h *WorkflowHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r, h.getSession, nil, nil, h.endSession)
}

func (h *WorkflowHandler) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/workflow/session/")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	// Ended and pre-restart sessions are served from storage
	session, err := h.controller.LookupSession(r.Context(), sessionID)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, session.Summary())
}

func (h *WorkflowHandler) endSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/workflow/session/")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	if err := h.controller.EndSession(r.Context(), sessionID); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":     "ended",
		"session_id": sessionID,
	})
}
