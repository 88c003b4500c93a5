package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
	"github.com/ternarybob/audiens/internal/services/email"
)

// EmailHandler exposes the reply pipeline over HTTP
type EmailHandler struct {
	email  *email.Service
	drafts interfaces.DraftStorage
	logger arbor.ILogger
}

func NewEmailHandler(emailSvc *email.Service, drafts interfaces.DraftStorage, logger arbor.ILogger) *EmailHandler {
	return &EmailHandler{
		email:  emailSvc,
		drafts: drafts,
		logger: logger,
	}
}

type processRequest struct {
	SessionID        string `json:"session_id" validate:"required"`
	BrowserSessionID string `json:"browser_session_id" validate:"required"`
	EmailID          string `json:"email_id" validate:"required"`
}

// ProcessHandler reads an email and stages a reply draft for review
func (h *EmailHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req processRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	draft, err := h.email.GenerateDraft(r.Context(), req.SessionID, req.BrowserSessionID, req.EmailID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "staged",
		"draft":  draft,
	})
}

// ListInboxHandler lists unread messages via the CRM session or IMAP
func (h *EmailHandler) ListInboxHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	browserSessionID := r.URL.Query().Get("browser_session_id")
	summaries, err := h.email.SyncInbox(r.Context(), browserSessionID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(summaries),
		"emails": summaries,
	})
}

// ListDraftsHandler lists drafts, optionally filtered by state
func (h *EmailHandler) ListDraftsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	state := models.DraftState(r.URL.Query().Get("state"))
	drafts, err := h.drafts.ListDrafts(r.Context(), state)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(drafts),
		"drafts": drafts,
	})
}

type submitRequest struct {
	BrowserSessionID string `json:"browser_session_id"`
	Send             bool   `json:"send"`
}

// DraftHandler routes /api/email/draft/{id} and its submit and discard
// subpaths
func (h *EmailHandler) DraftHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/email/draft/")

	switch {
	case strings.HasSuffix(path, "/submit"):
		h.submitDraft(w, r, strings.TrimSuffix(path, "/submit"))
	case strings.HasSuffix(path, "/discard"):
		h.discardDraft(w, r, strings.TrimSuffix(path, "/discard"))
	default:
		h.getDraft(w, r, path)
	}
}

func (h *EmailHandler) getDraft(w http.ResponseWriter, r *http.Request, draftID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if draftID == "" {
		WriteError(w, http.StatusBadRequest, "Draft ID required")
		return
	}

	draft, err := h.drafts.GetDraft(r.Context(), draftID)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, draft)
}

func (h *EmailHandler) submitDraft(w http.ResponseWriter, r *http.Request, draftID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req submitRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	draft, err := h.email.SubmitDraft(r.Context(), req.BrowserSessionID, draftID, req.Send)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": string(draft.State),
		"draft":  draft,
	})
}

func (h *EmailHandler) discardDraft(w http.ResponseWriter, r *http.Request, draftID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.email.DiscardDraft(r.Context(), draftID); err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	WriteSuccess(w, "Draft discarded")
}
