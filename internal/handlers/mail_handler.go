package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/services/imap"
	"github.com/ternarybob/audiens/internal/services/mailer"
)

// MailHandler configures the SMTP and IMAP fallback transports
type MailHandler struct {
	mailer *mailer.Service
	imap   *imap.Service
	logger arbor.ILogger
}

func NewMailHandler(mailerSvc *mailer.Service, imapSvc *imap.Service, logger arbor.ILogger) *MailHandler {
	return &MailHandler{
		mailer: mailerSvc,
		imap:   imapSvc,
		logger: logger,
	}
}

// SMTPConfigHandler reads or updates SMTP settings. Passwords are
// blanked on the way out.
func (h *MailHandler) SMTPConfigHandler(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r, h.getSMTPConfig, h.setSMTPConfig, nil, nil)
}

func (h *MailHandler) getSMTPConfig(w http.ResponseWriter, r *http.Request) {
	config, err := h.mailer.GetConfig(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	config.Password = ""
	WriteJSON(w, http.StatusOK, config)
}

func (h *MailHandler) setSMTPConfig(w http.ResponseWriter, r *http.Request) {
	var config mailer.Config
	if !DecodeAndValidate(w, r, &config) {
		return
	}
	if err := h.mailer.SetConfig(r.Context(), &config); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info().Str("host", config.Host).Msg("Updated SMTP configuration")
	WriteSuccess(w, "SMTP configuration saved")
}

type imapConfigRequest struct {
	Host     string `json:"imap_host" validate:"required"`
	Port     int    `json:"imap_port"`
	Username string `json:"imap_username" validate:"required"`
	Password string `json:"imap_password" validate:"required"`
	Folder   string `json:"imap_folder"`
	UseTLS   bool   `json:"imap_use_tls"`
}

// IMAPConfigHandler reads or updates IMAP fallback settings
func (h *MailHandler) IMAPConfigHandler(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r, h.getIMAPConfig, h.setIMAPConfig, nil, nil)
}

func (h *MailHandler) getIMAPConfig(w http.ResponseWriter, r *http.Request) {
	config, err := h.imap.GetConfig(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imap_host":     config.Host,
		"imap_port":     config.Port,
		"imap_username": config.Username,
		"imap_folder":   config.Folder,
		"imap_use_tls":  config.UseTLS,
		"configured":    h.imap.IsConfigured(r.Context()),
	})
}

func (h *MailHandler) setIMAPConfig(w http.ResponseWriter, r *http.Request) {
	var req imapConfigRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	config := &imap.Config{
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		Folder:   req.Folder,
		UseTLS:   req.UseTLS,
	}
	if err := h.imap.SetConfig(r.Context(), config); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info().Str("host", config.Host).Msg("Updated IMAP configuration")
	WriteSuccess(w, "IMAP configuration saved")
}

type testEmailRequest struct {
	To string `json:"to" validate:"required,email"`
}

// TestEmailHandler sends a test message through the configured SMTP
// transport
func (h *MailHandler) TestEmailHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req testEmailRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	if !h.mailer.IsConfigured(r.Context()) {
		WriteError(w, http.StatusBadRequest, "Mail is not configured. Configure SMTP settings first.")
		return
	}

	if err := h.mailer.SendTestEmail(r.Context(), req.To); err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteSuccess(w, "Test email sent to "+req.To)
}
