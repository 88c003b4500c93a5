// -----------------------------------------------------------------------
// Mailer Service - SMTP sending for the digest report and CRM-unavailable
// fallback. Credentials are stored in KeyValue storage with smtp_ prefix
// -----------------------------------------------------------------------

package mailer

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
)

// Config holds SMTP configuration loaded from KeyValue storage
type Config struct {
	Host     string `json:"smtp_host"`
	Port     int    `json:"smtp_port"`
	Username string `json:"smtp_username"`
	Password string `json:"smtp_password"`
	From     string `json:"smtp_from"`
	FromName string `json:"smtp_from_name"`
	UseTLS   bool   `json:"smtp_use_tls"`
}

// Attachment represents an outbound email attachment
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Service sends mail over SMTP using the counselor's credentials
type Service struct {
	kvStorage interfaces.KeyValueStorage
	defaults  *common.SMTPConfig
	logger    arbor.ILogger
}

// NewService creates a new mailer service. KV store values override the
// config-file defaults so credentials survive reset_on_startup.
func NewService(defaults *common.SMTPConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	return &Service{
		kvStorage: kvStorage,
		defaults:  defaults,
		logger:    logger,
	}
}

// GetConfig retrieves SMTP configuration
func (s *Service) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		Port:     587, // Default submission port
		UseTLS:   true,
		FromName: "Audiens",
	}

	if s.defaults != nil {
		if s.defaults.Server != "" {
			idx := strings.LastIndex(s.defaults.Server, ":")
			if idx > 0 {
				config.Host = s.defaults.Server[:idx]
				if port, err := strconv.Atoi(s.defaults.Server[idx+1:]); err == nil {
					config.Port = port
				}
			} else {
				config.Host = s.defaults.Server
			}
		}
		if s.defaults.Username != "" {
			config.Username = s.defaults.Username
		}
		if s.defaults.Password != "" {
			config.Password = s.defaults.Password
		}
		if s.defaults.From != "" {
			config.From = s.defaults.From
		}
	}

	if host, err := s.kvStorage.Get(ctx, "smtp_host"); err == nil && host != "" {
		config.Host = host
	}
	if portStr, err := s.kvStorage.Get(ctx, "smtp_port"); err == nil && portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Port = port
		}
	}
	if username, err := s.kvStorage.Get(ctx, "smtp_username"); err == nil && username != "" {
		config.Username = username
	}
	if password, err := s.kvStorage.Get(ctx, "smtp_password"); err == nil && password != "" {
		config.Password = password
	}
	if from, err := s.kvStorage.Get(ctx, "smtp_from"); err == nil && from != "" {
		config.From = from
	}
	if fromName, err := s.kvStorage.Get(ctx, "smtp_from_name"); err == nil && fromName != "" {
		config.FromName = fromName
	}
	if tlsStr, err := s.kvStorage.Get(ctx, "smtp_use_tls"); err == nil && tlsStr != "" {
		config.UseTLS = strings.ToLower(tlsStr) == "true" || tlsStr == "1"
	}

	return config, nil
}

// SetConfig saves SMTP configuration to KeyValue storage
func (s *Service) SetConfig(ctx context.Context, config *Config) error {
	pairs := []struct{ key, value, desc string }{
		{"smtp_host", config.Host, "SMTP server hostname"},
		{"smtp_port", strconv.Itoa(config.Port), "SMTP server port"},
		{"smtp_username", config.Username, "SMTP username (email address)"},
		{"smtp_password", config.Password, "SMTP password or app password"},
		{"smtp_from", config.From, "From email address"},
		{"smtp_from_name", config.FromName, "From display name"},
		{"smtp_use_tls", strconv.FormatBool(config.UseTLS), "Use TLS encryption"},
	}
	for _, p := range pairs {
		if err := s.kvStorage.Set(ctx, p.key, p.value, p.desc); err != nil {
			return fmt.Errorf("failed to set %s: %w", p.key, err)
		}
	}

	s.logger.Info().
		Str("host", config.Host).
		Int("port", config.Port).
		Str("from", config.From).
		Msg("Mail configuration saved")

	return nil
}

// IsConfigured checks if SMTP is configured with minimum required settings
func (s *Service) IsConfigured(ctx context.Context) bool {
	config, err := s.GetConfig(ctx)
	if err != nil {
		return false
	}
	return config.Host != "" && config.Username != "" && config.Password != "" && config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	return s.SendEmailWithAttachments(ctx, to, subject, "", body, nil)
}

// SendHTMLEmail sends an email with HTML and plain text alternatives
func (s *Service) SendHTMLEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	return s.SendEmailWithAttachments(ctx, to, subject, htmlBody, textBody, nil)
}

// SendEmailWithAttachments sends an email with optional HTML body and
// file attachments
func (s *Service) SendEmailWithAttachments(ctx context.Context, to, subject, htmlBody, textBody string, attachments []Attachment) error {
	config, err := s.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get mail config: %w", err)
	}
	if config.Host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if config.Username == "" || config.Password == "" {
		return fmt.Errorf("SMTP credentials not configured")
	}
	if config.From == "" {
		return fmt.Errorf("from email not configured")
	}

	msg := buildMessage(config, to, subject, htmlBody, textBody, attachments)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	if config.UseTLS {
		return s.sendWithTLS(addr, auth, config.From, to, msg)
	}
	return smtp.SendMail(addr, auth, config.From, []string{to}, []byte(msg))
}

// SendTestEmail sends a test email to verify configuration
func (s *Service) SendTestEmail(ctx context.Context, to string) error {
	subject := "Audiens Test Email"
	body := "This is a test email from Audiens to verify your SMTP configuration is working correctly."

	if err := s.SendEmail(ctx, to, subject, body); err != nil {
		s.logger.Error().Err(err).Str("to", to).Msg("Failed to send test email")
		return err
	}

	s.logger.Info().Str("to", to).Msg("Test email sent successfully")
	return nil
}

// buildMessage assembles the RFC 5322 message. Body parts are base64
// encoded so long HTML lines never exceed the 998-char limit.
func buildMessage(config *Config, to, subject, htmlBody, textBody string, attachments []Attachment) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", config.FromName, config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))

	// Simple plain-text message
	if htmlBody == "" && len(attachments) == 0 {
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(textBody)
		return msg.String()
	}

	msg.WriteString("MIME-Version: 1.0\r\n")

	altBoundary := generateBoundary()
	mixedBoundary := ""
	if len(attachments) > 0 {
		mixedBoundary = generateBoundary()
		msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", mixedBoundary))
		msg.WriteString(fmt.Sprintf("--%s\r\n", mixedBoundary))
	}
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", altBoundary))

	if textBody != "" {
		msg.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		msg.WriteString(encodeBase64WithLineBreaks(textBody))
		msg.WriteString("\r\n")
	}
	if htmlBody != "" {
		msg.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
		msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		msg.WriteString(encodeBase64WithLineBreaks(htmlBody))
		msg.WriteString("\r\n")
	}
	msg.WriteString(fmt.Sprintf("--%s--\r\n", altBoundary))

	for _, att := range attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		msg.WriteString(fmt.Sprintf("--%s\r\n", mixedBoundary))
		msg.WriteString(fmt.Sprintf("Content-Type: %s; name=\"%s\"\r\n", contentType, att.Filename))
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", att.Filename))
		msg.WriteString(encodeBase64WithLineBreaks(string(att.Content)))
		msg.WriteString("\r\n")
	}
	if mixedBoundary != "" {
		msg.WriteString(fmt.Sprintf("--%s--\r\n", mixedBoundary))
	}

	return msg.String()
}

// sendWithTLS sends over an implicit TLS connection, falling back to
// STARTTLS when the direct TLS dial fails
func (s *Service) sendWithTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return s.sendWithSTARTTLS(addr, auth, from, to, msg)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	return submit(client, auth, from, to, msg)
}

// sendWithSTARTTLS sends using a STARTTLS upgrade
func (s *Service) sendWithSTARTTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	return submit(client, auth, from, to, msg)
}

// submit runs the authenticated SMTP transaction on an open client
func submit(client *smtp.Client, auth smtp.Auth, from, to, msg string) error {
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// generateBoundary creates a unique MIME boundary string
func generateBoundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "audiens_boundary_fallback"
	}
	return fmt.Sprintf("audiens_%x", b)
}

// encodeBase64WithLineBreaks encodes content as base64 with 76-char line
// breaks per RFC 2045
func encodeBase64WithLineBreaks(content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))

	var result strings.Builder
	const lineLen = 76

	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		result.WriteString(encoded[i:end])
		if end < len(encoded) {
			result.WriteString("\r\n")
		}
	}

	return result.String()
}
