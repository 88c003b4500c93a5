// -----------------------------------------------------------------------
// Email Service - the reply pipeline. Reads an applicant message, grounds
// a draft in the knowledge corpus, and stages it for counselor review.
// Nothing leaves the building without an explicit send or save command.
// -----------------------------------------------------------------------

package email

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
	"github.com/ternarybob/audiens/internal/services/browser"
	"github.com/ternarybob/audiens/internal/services/imap"
	"github.com/ternarybob/audiens/internal/services/knowledge"
	"github.com/ternarybob/audiens/internal/services/llm"
	"github.com/ternarybob/audiens/internal/services/mailer"
)

// Service orchestrates the read, draft, and submit pipeline
type Service struct {
	config      *common.Config
	browser     *browser.Service
	imap        *imap.Service
	mailer      *mailer.Service
	drafter     *llm.Drafter
	knowledge   *knowledge.Service
	drafts      interfaces.DraftStorage
	events      interfaces.EventService
	attachments *AttachmentStore
	converter   *md.Converter
	markdown    goldmark.Markdown
	logger      arbor.ILogger
}

// NewService creates the email pipeline service
func NewService(
	cfg *common.Config,
	browserSvc *browser.Service,
	imapSvc *imap.Service,
	mailerSvc *mailer.Service,
	drafter *llm.Drafter,
	knowledgeSvc *knowledge.Service,
	drafts interfaces.DraftStorage,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:      cfg,
		browser:     browserSvc,
		imap:        imapSvc,
		mailer:      mailerSvc,
		drafter:     drafter,
		knowledge:   knowledgeSvc,
		drafts:      drafts,
		events:      events,
		attachments: NewAttachmentStore(cfg.Storage.Filesystem.Attachments, logger),
		converter:   md.NewConverter("", true, nil),
		markdown:    goldmark.New(),
		logger:      logger,
	}
}

// Attachments exposes the attachment store for the scheduler sweep
func (s *Service) Attachments() *AttachmentStore {
	return s.attachments
}

// ReadEmail loads a message from the CRM and normalizes its body to
// markdown
func (s *Service) ReadEmail(ctx context.Context, browserSessionID, emailID string) (*models.EmailMessage, error) {
	msg, err := s.browser.ReadMessage(ctx, browserSessionID, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", emailID, err)
	}

	s.normalizeBody(msg)
	s.storeAttachments(msg)
	return msg, nil
}

// storeAttachments persists the transport's raw attachment parts and
// replaces them with stored metadata. Invalid or empty parts are logged
// and dropped so one bad upload does not block the reply pipeline.
func (s *Service) storeAttachments(msg *models.EmailMessage) {
	for _, part := range msg.Parts {
		if len(part.Content) == 0 {
			continue
		}
		stored, err := s.attachments.Store(msg.EmailID, part.Filename, part.ContentType, part.Content)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("email_id", msg.EmailID).
				Str("file", part.Filename).
				Msg("Attachment rejected")
			continue
		}
		msg.Attachments = append(msg.Attachments, *stored)
	}
	msg.Parts = nil
}

// SyncInbox lists unread messages, preferring the CRM browser session and
// falling back to IMAP when no browser session is available
func (s *Service) SyncInbox(ctx context.Context, browserSessionID string) ([]models.EmailSummary, error) {
	var summaries []models.EmailSummary

	if browserSessionID != "" {
		listed, err := s.browser.ListInbox(ctx, browserSessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to list CRM inbox: %w", err)
		}
		summaries = listed
	} else if s.imap.IsConfigured(ctx) {
		messages, err := s.imap.FetchUnread(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch IMAP inbox: %w", err)
		}
		for _, msg := range messages {
			s.normalizeBody(msg)
			s.storeAttachments(msg)
			summaries = append(summaries, models.EmailSummary{
				EmailID: msg.EmailID,
				Subject: msg.Subject,
				Sender:  msg.Sender,
				Date:    msg.Date,
			})
		}
	} else {
		return nil, fmt.Errorf("no CRM session and IMAP is not configured")
	}

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventInboxSynced,
		Payload: map[string]interface{}{
			"count":  len(summaries),
			"source": inboxSource(browserSessionID),
		},
	})

	return summaries, nil
}

// GenerateDraft runs the full drafting pipeline for one email: classify
// intent, retrieve grounding articles, call the LLM, and stage the result
func (s *Service) GenerateDraft(ctx context.Context, sessionID, browserSessionID, emailID string) (*models.ReplyDraft, error) {
	msg, err := s.ReadEmail(ctx, browserSessionID, emailID)
	if err != nil {
		return nil, err
	}
	return s.GenerateDraftFor(ctx, sessionID, msg)
}

// GenerateDraftFor drafts a reply for an already loaded message
func (s *Service) GenerateDraftFor(ctx context.Context, sessionID string, msg *models.EmailMessage) (*models.ReplyDraft, error) {
	intent := ClassifyIntent(msg)

	articles, err := s.knowledge.Search(ctx, msg.Subject+" "+msg.Body)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Knowledge search failed, drafting ungrounded")
		articles = nil
	}

	body, err := s.drafter.DraftReply(ctx, msg, intent, articles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate draft: %w", err)
	}

	sources := make([]string, 0, len(articles))
	for _, a := range articles {
		sources = append(sources, a.ID)
	}

	draft := &models.ReplyDraft{
		ID:         common.NewDraftID(),
		SessionID:  sessionID,
		EmailID:    msg.EmailID,
		Recipient:  msg.Sender,
		Subject:    replySubject(msg.Subject),
		Body:       body,
		Intent:     intent,
		Confidence: draftConfidence(intent, len(articles)),
		Sources:    sources,
		State:      models.DraftStaged,
	}

	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to stage draft: %w", err)
	}

	s.logger.Info().
		Str("draft_id", draft.ID).
		Str("email_id", draft.EmailID).
		Str("intent", string(draft.Intent)).
		Int("sources", len(sources)).
		Msg("Reply draft staged for review")

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventDraftStaged,
		Payload: map[string]interface{}{
			"draft_id":   draft.ID,
			"email_id":   draft.EmailID,
			"session_id": sessionID,
			"intent":     string(draft.Intent),
		},
	})

	return draft, nil
}

// SubmitDraft sends a staged draft through the CRM, or saves it as a CRM
// draft when send is false. If the CRM submission fails and SMTP is
// configured, sending falls back to direct email.
func (s *Service) SubmitDraft(ctx context.Context, browserSessionID, draftID string, send bool) (*models.ReplyDraft, error) {
	draft, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("draft %s not found: %w", draftID, err)
	}
	if draft.State != models.DraftStaged {
		return nil, fmt.Errorf("draft %s is %s, only staged drafts can be submitted", draftID, draft.State)
	}

	submitErr := s.browser.SubmitReply(ctx, browserSessionID, draft.EmailID, draft.Body, send)
	if submitErr != nil && send && s.mailer.IsConfigured(ctx) && draft.Recipient != "" {
		s.logger.Warn().Err(submitErr).Str("draft_id", draftID).Msg("CRM submission failed, falling back to SMTP")
		submitErr = s.sendViaSMTP(ctx, draft)
	}
	if submitErr != nil {
		return nil, fmt.Errorf("failed to submit draft: %w", submitErr)
	}

	if send {
		draft.State = models.DraftSent
	} else {
		draft.State = models.DraftSaved
	}
	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to update draft state: %w", err)
	}

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventDraftSubmitted,
		Payload: map[string]interface{}{
			"draft_id": draft.ID,
			"email_id": draft.EmailID,
			"state":    string(draft.State),
		},
	})

	return draft, nil
}

// DiscardDraft rejects a staged draft without sending anything
func (s *Service) DiscardDraft(ctx context.Context, draftID string) error {
	draft, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return fmt.Errorf("draft %s not found: %w", draftID, err)
	}
	if draft.State != models.DraftStaged {
		return fmt.Errorf("draft %s is %s, only staged drafts can be discarded", draftID, draft.State)
	}

	draft.State = models.DraftDiscarded
	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		return fmt.Errorf("failed to discard draft: %w", err)
	}

	s.logger.Info().Str("draft_id", draftID).Msg("Draft discarded")
	return nil
}

// sendViaSMTP renders the markdown draft to HTML and mails it directly
func (s *Service) sendViaSMTP(ctx context.Context, draft *models.ReplyDraft) error {
	var html bytes.Buffer
	if err := s.markdown.Convert([]byte(draft.Body), &html); err != nil {
		return fmt.Errorf("failed to render draft: %w", err)
	}
	return s.mailer.SendHTMLEmail(ctx, draft.Recipient, draft.Subject, html.String(), draft.Body)
}

// normalizeBody converts an HTML message body to markdown so intent
// classification, knowledge search, and the LLM all see clean text
func (s *Service) normalizeBody(msg *models.EmailMessage) {
	if msg.Body != "" || msg.BodyHTML == "" {
		return
	}
	markdown, err := s.converter.ConvertString(msg.BodyHTML)
	if err != nil {
		s.logger.Warn().Err(err).Str("email_id", msg.EmailID).Msg("HTML conversion failed, using raw body")
		msg.Body = msg.BodyHTML
		return
	}
	msg.Body = strings.TrimSpace(markdown)
}

func replySubject(subject string) string {
	if subject == "" {
		return "Re: your message"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// draftConfidence is a coarse review signal: grounded drafts with a
// recognized intent score higher than ungrounded guesses
func draftConfidence(intent models.EmailIntent, articleCount int) float64 {
	confidence := 0.4
	if intent != models.IntentUnknown {
		confidence += 0.3
	}
	if articleCount > 0 {
		confidence += 0.2
	}
	if articleCount > 1 {
		confidence += 0.1
	}
	return confidence
}

func inboxSource(browserSessionID string) string {
	if browserSessionID != "" {
		return "crm"
	}
	return "imap"
}
