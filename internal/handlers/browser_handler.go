package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
	"github.com/ternarybob/audiens/internal/services/browser"
)

// BrowserHandler drives CRM sessions and manages stored credentials
type BrowserHandler struct {
	browser     *browser.Service
	credentials interfaces.CredentialStorage
	logger      arbor.ILogger
}

func NewBrowserHandler(browserSvc *browser.Service, credentials interfaces.CredentialStorage, logger arbor.ILogger) *BrowserHandler {
	return &BrowserHandler{
		browser:     browserSvc,
		credentials: credentials,
		logger:      logger,
	}
}

// LoginHandler opens a CRM session using stored credentials
func (h *BrowserHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	sessionID, err := h.browser.Login(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("CRM login failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "authenticated",
		"browser_session_id": sessionID,
	})
}

type navigateRequest struct {
	BrowserSessionID string `json:"browser_session_id" validate:"required"`
}

// NavigateInboxHandler moves an authenticated session to the CRM inbox
func (h *BrowserHandler) NavigateInboxHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req navigateRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.browser.OpenInbox(r.Context(), req.BrowserSessionID); err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	WriteSuccess(w, "Inbox opened")
}

// StatusHandler reports the state of one CRM session
func (h *BrowserHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/browser/status/")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	status, err := h.browser.Status(sessionID)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// ScreenshotHandler returns a PNG of the session's current page
func (h *BrowserHandler) ScreenshotHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/browser/screenshot/")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	shot, err := h.browser.Screenshot(r.Context(), sessionID)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(shot)
}

// CloseSessionHandler releases a CRM session back to the pool
func (h *BrowserHandler) CloseSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/browser/session/")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	if err := h.browser.CloseSession(sessionID); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteSuccess(w, "Session closed")
}

type credentialsRequest struct {
	Name           string `json:"name"`
	BaseURL        string `json:"base_url" validate:"required,url"`
	Username       string `json:"username" validate:"required"`
	Password       string `json:"password" validate:"required"`
	SecurityAnswer string `json:"security_answer"`
}

// CredentialsHandler lists stored credentials or saves a new set.
// Passwords and security answers are masked on the way out.
func (h *BrowserHandler) CredentialsHandler(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r, h.listCredentials, h.saveCredentials, nil, nil)
}

func (h *BrowserHandler) listCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentials.ListCredentials(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	masked := make([]models.CRMCredentials, 0, len(creds))
	for _, c := range creds {
		masked = append(masked, c.Masked())
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(masked),
		"credentials": masked,
	})
}

func (h *BrowserHandler) saveCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	now := time.Now().Unix()
	creds := &models.CRMCredentials{
		ID:             common.NewCredentialID(),
		Name:           req.Name,
		BaseURL:        req.BaseURL,
		Username:       req.Username,
		Password:       req.Password,
		SecurityAnswer: req.SecurityAnswer,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if creds.Name == "" {
		creds.Name = creds.Username
	}

	if err := h.credentials.StoreCredentials(r.Context(), creds); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info().Str("credential_id", creds.ID).Msg("Stored CRM credentials")
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status":      "created",
		"credentials": creds.Masked(),
	})
}

// CredentialHandler handles GET and DELETE for a single credential set
func (h *BrowserHandler) CredentialHandler(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r, h.getCredential, nil, nil, h.deleteCredential)
}

func (h *BrowserHandler) getCredential(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/browser/credentials/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Credential ID required")
		return
	}

	creds, err := h.credentials.GetCredentials(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, creds.Masked())
}

func (h *BrowserHandler) deleteCredential(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/browser/credentials/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Credential ID required")
		return
	}

	if err := h.credentials.DeleteCredentials(r.Context(), id); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteSuccess(w, "Credentials deleted")
}
