// -----------------------------------------------------------------------
// IMAP Service - fallback mailbox fetch when the CRM inbox is unreachable
// Credentials are stored in KeyValue storage with imap_ prefix
// -----------------------------------------------------------------------

package imap

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

// Config holds IMAP configuration loaded from KeyValue storage
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Folder   string
	UseTLS   bool
}

// Service fetches applicant mail over IMAP. It is the fallback transport
// when the CRM inbox cannot be scraped.
type Service struct {
	kvStorage interfaces.KeyValueStorage
	defaults  *common.IMAPConfig
	logger    arbor.ILogger
}

// NewService creates a new IMAP service
func NewService(defaults *common.IMAPConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	return &Service{
		kvStorage: kvStorage,
		defaults:  defaults,
		logger:    logger,
	}
}

// GetConfig retrieves IMAP configuration. KV store values override the
// config-file defaults.
func (s *Service) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		Port:   993, // Default IMAP SSL port
		Folder: "INBOX",
		UseTLS: true,
	}

	if s.defaults != nil {
		if s.defaults.Server != "" {
			host, port := splitHostPort(s.defaults.Server)
			config.Host = host
			if port > 0 {
				config.Port = port
			}
		}
		if s.defaults.Username != "" {
			config.Username = s.defaults.Username
		}
		if s.defaults.Password != "" {
			config.Password = s.defaults.Password
		}
		if s.defaults.Folder != "" {
			config.Folder = s.defaults.Folder
		}
		config.UseTLS = s.defaults.UseTLS
	}

	if host, err := s.kvStorage.Get(ctx, "imap_host"); err == nil && host != "" {
		config.Host = host
	}
	if portStr, err := s.kvStorage.Get(ctx, "imap_port"); err == nil && portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Port = port
		}
	}
	if username, err := s.kvStorage.Get(ctx, "imap_username"); err == nil && username != "" {
		config.Username = username
	}
	if password, err := s.kvStorage.Get(ctx, "imap_password"); err == nil && password != "" {
		config.Password = password
	}
	if folder, err := s.kvStorage.Get(ctx, "imap_folder"); err == nil && folder != "" {
		config.Folder = folder
	}
	if tlsStr, err := s.kvStorage.Get(ctx, "imap_use_tls"); err == nil && tlsStr != "" {
		config.UseTLS = strings.ToLower(tlsStr) == "true" || tlsStr == "1"
	}

	return config, nil
}

// SetConfig saves IMAP configuration to KeyValue storage
func (s *Service) SetConfig(ctx context.Context, config *Config) error {
	if err := s.kvStorage.Set(ctx, "imap_host", config.Host, "IMAP server hostname"); err != nil {
		return fmt.Errorf("failed to set imap_host: %w", err)
	}
	if err := s.kvStorage.Set(ctx, "imap_port", strconv.Itoa(config.Port), "IMAP server port"); err != nil {
		return fmt.Errorf("failed to set imap_port: %w", err)
	}
	if err := s.kvStorage.Set(ctx, "imap_username", config.Username, "IMAP username (email address)"); err != nil {
		return fmt.Errorf("failed to set imap_username: %w", err)
	}
	if err := s.kvStorage.Set(ctx, "imap_password", config.Password, "IMAP password or app password"); err != nil {
		return fmt.Errorf("failed to set imap_password: %w", err)
	}

	tlsStr := "false"
	if config.UseTLS {
		tlsStr = "true"
	}
	if err := s.kvStorage.Set(ctx, "imap_use_tls", tlsStr, "Use TLS encryption"); err != nil {
		return fmt.Errorf("failed to set imap_use_tls: %w", err)
	}

	s.logger.Info().
		Str("host", config.Host).
		Int("port", config.Port).
		Msg("IMAP configuration saved")

	return nil
}

// IsConfigured checks if IMAP is configured with minimum required settings
func (s *Service) IsConfigured(ctx context.Context) bool {
	config, err := s.GetConfig(ctx)
	if err != nil {
		return false
	}
	return config.Host != "" && config.Username != "" && config.Password != ""
}

// FetchUnread fetches unread messages from the configured folder
func (s *Service) FetchUnread(ctx context.Context) ([]*models.EmailMessage, error) {
	config, err := s.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get IMAP config: %w", err)
	}

	if config.Host == "" || config.Username == "" || config.Password == "" {
		return nil, fmt.Errorf("IMAP not configured")
	}

	c, err := s.connect(config)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select(config.Folder, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", config.Folder, err)
	}

	if mbox.Messages == 0 {
		s.logger.Debug().Str("folder", config.Folder).Msg("No messages in folder")
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search for unseen messages: %w", err)
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	s.logger.Debug().Int("count", len(seqNums)).Msg("Found unseen messages")

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	messages := make(chan *imap.Message, len(seqNums))
	section := &imap.BodySectionName{}

	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, section.FetchItem()}, messages)
	}()

	var emails []*models.EmailMessage
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}

		body, bodyHTML, parts, err := s.parseMessageBody(msg, section)
		if err != nil {
			s.logger.Warn().Err(err).Int("seq", int(msg.SeqNum)).Msg("Failed to parse message body")
			continue
		}

		from := ""
		if len(msg.Envelope.From) > 0 {
			from = msg.Envelope.From[0].Address()
		}
		to := ""
		if len(msg.Envelope.To) > 0 {
			to = msg.Envelope.To[0].Address()
		}

		emails = append(emails, &models.EmailMessage{
			EmailID:   fmt.Sprintf("imap-%d", msg.SeqNum),
			Subject:   msg.Envelope.Subject,
			Sender:    from,
			Recipient: to,
			Date:      msg.Envelope.Date,
			Body:      body,
			BodyHTML:  bodyHTML,
			Parts:     parts,
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return emails, nil
}

// MarkAsRead marks a message as seen
func (s *Service) MarkAsRead(ctx context.Context, seqNum uint32) error {
	config, err := s.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get IMAP config: %w", err)
	}
	if config.Host == "" || config.Username == "" || config.Password == "" {
		return fmt.Errorf("IMAP not configured")
	}

	c, err := s.connect(config)
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(config.Folder, false); err != nil {
		return fmt.Errorf("failed to select %s: %w", config.Folder, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	if err := c.Store(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark message as read: %w", err)
	}

	s.logger.Debug().Int("seq", int(seqNum)).Msg("Marked message as read")
	return nil
}

func (s *Service) connect(config *Config) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	var c *client.Client
	var err error
	if config.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(config.Username, config.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}

	return c, nil
}

// parseMessageBody extracts text and HTML bodies plus attachment parts
// from an IMAP message
func (s *Service) parseMessageBody(msg *imap.Message, section *imap.BodySectionName) (string, string, []models.AttachmentPart, error) {
	r := msg.GetBody(section)
	if r == nil {
		return "", "", nil, fmt.Errorf("no body section")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to create mail reader: %w", err)
	}

	var body, bodyHTML string
	var parts []models.AttachmentPart
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", nil, fmt.Errorf("failed to read next part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				b, err := io.ReadAll(p.Body)
				if err != nil {
					return "", "", nil, fmt.Errorf("failed to read body: %w", err)
				}
				body = string(b)
			case strings.HasPrefix(contentType, "text/html"):
				b, err := io.ReadAll(p.Body)
				if err != nil {
					return "", "", nil, fmt.Errorf("failed to read HTML body: %w", err)
				}
				bodyHTML = string(b)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			content, err := io.ReadAll(p.Body)
			if err != nil {
				s.logger.Warn().Err(err).Str("file", filename).Msg("Failed to read attachment part")
				continue
			}
			parts = append(parts, models.AttachmentPart{
				Filename:    filename,
				ContentType: contentType,
				Content:     content,
			})
		}
	}

	return strings.TrimSpace(body), strings.TrimSpace(bodyHTML), parts, nil
}

// splitHostPort parses "host:port", tolerating a bare host
func splitHostPort(addr string) (string, int) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, 0
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return addr, 0
	}
	return addr[:idx], port
}
