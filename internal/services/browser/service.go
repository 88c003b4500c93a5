package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

// CRM page selectors. Slate-style admin consoles keep these stable across
// tenants; override points can be added to config if a deployment differs.
const (
	selUsername      = `input[name="user"]`
	selPassword      = `input[name="password"]`
	selLoginSubmit   = `button[type="submit"]`
	selSecurityInput = `input[name="answer"]`
	selInboxTable    = `table.inbox`
	selMessageBody   = `div.message-body`
	selReplyBox      = `textarea[name="reply"]`
	selSendButton    = `button[data-action="send"]`
	selSaveButton    = `button[data-action="save-draft"]`
)

// crmSession is one authenticated tab against the CRM
type crmSession struct {
	id            string
	ctx           context.Context
	cancel        context.CancelFunc
	authenticated bool
	createdAt     time.Time
	lastUsed      time.Time
}

// Service drives the enrollment CRM through headless Chrome. Page actions
// are rate limited so automated navigation stays below human speed.
type Service struct {
	cfg         *common.CRMConfig
	pool        *Pool
	credentials interfaces.CredentialStorage
	events      interfaces.EventService
	tracker     interfaces.Tracker
	logger      arbor.ILogger
	limiter     *rate.Limiter
	navTimeout  time.Duration

	mu       sync.Mutex
	sessions map[string]*crmSession
}

// NewService creates a CRM browser service. The pool must be initialized
// before Login is called.
func NewService(cfg *common.CRMConfig, pool *Pool, credentials interfaces.CredentialStorage, events interfaces.EventService, logger arbor.ILogger) *Service {
	interval := common.ParseDurationOr(cfg.ActionRateLimit, 500*time.Millisecond)
	return &Service{
		cfg:         cfg,
		pool:        pool,
		credentials: credentials,
		events:      events,
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		navTimeout:  common.ParseDurationOr(cfg.NavTimeout, 30*time.Second),
		sessions:    make(map[string]*crmSession),
	}
}

// SetTracker attaches the request metrics recorder
func (s *Service) SetTracker(t interfaces.Tracker) {
	s.tracker = t
}

// observe records one page operation outcome against the browser metrics
func (s *Service) observe(start time.Time, err *error) {
	if s.tracker == nil {
		return
	}
	s.tracker.Record("browser", *err == nil, time.Since(start), *err)
}

// Login opens a new CRM session. Stored cookies from a previous login are
// restored first; the full credential flow only runs when the CRM still
// presents the login form.
func (s *Service) Login(ctx context.Context) (sessionID string, err error) {
	defer s.observe(time.Now(), &err)

	creds, err := s.credentials.GetDefaultCredentials(ctx)
	if err != nil {
		return "", fmt.Errorf("no CRM credentials stored: %w", err)
	}

	baseURL := creds.BaseURL
	if baseURL == "" {
		baseURL = s.cfg.BaseURL
	}
	if baseURL == "" {
		return "", fmt.Errorf("CRM base URL is not configured")
	}

	browserCtx, err := s.pool.Get()
	if err != nil {
		return "", fmt.Errorf("failed to get browser from pool: %w", err)
	}

	// Each CRM session gets its own tab
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)

	session := &crmSession{
		id:        "crm_" + uuid.New().String(),
		ctx:       tabCtx,
		cancel:    tabCancel,
		createdAt: time.Now(),
		lastUsed:  time.Now(),
	}

	if err := s.authenticate(ctx, session, creds, baseURL); err != nil {
		tabCancel()
		return "", err
	}

	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()

	s.logger.Info().
		Str("session_id", session.id).
		Str("base_url", baseURL).
		Msg("CRM login completed")

	return session.id, nil
}

func (s *Service) authenticate(ctx context.Context, session *crmSession, creds *models.CRMCredentials, baseURL string) error {
	runCtx, cancel := context.WithTimeout(session.ctx, s.navTimeout)
	defer cancel()

	// Restore cookies from the previous login before navigating
	if len(creds.Cookies) > 0 {
		if err := s.restoreCookies(runCtx, creds.Cookies, baseURL); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to restore saved CRM cookies")
		}
	}

	if err := s.navigate(runCtx, baseURL+s.cfg.InboxPath); err != nil {
		return fmt.Errorf("failed to reach CRM: %w", err)
	}

	// If the inbox renders, the restored cookies are still valid
	if s.elementExists(runCtx, selInboxTable) {
		session.authenticated = true
		s.logger.Debug().Msg("CRM session restored from saved cookies")
		return nil
	}

	// Full login flow
	if err := s.runActions(runCtx,
		chromedp.WaitVisible(selUsername, chromedp.ByQuery),
		chromedp.SendKeys(selUsername, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, creds.Password, chromedp.ByQuery),
		chromedp.Click(selLoginSubmit, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("login form submission failed: %w", err)
	}

	// Some deployments present a security question after the password
	if s.elementExists(runCtx, selSecurityInput) {
		if creds.SecurityAnswer == "" {
			return fmt.Errorf("CRM requires a security answer but none is stored")
		}
		if err := s.runActions(runCtx,
			chromedp.SendKeys(selSecurityInput, creds.SecurityAnswer, chromedp.ByQuery),
			chromedp.Click(selLoginSubmit, chromedp.ByQuery),
		); err != nil {
			return fmt.Errorf("security challenge failed: %w", err)
		}
	}

	if err := s.runActions(runCtx, chromedp.WaitVisible(selInboxTable, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("login did not reach the inbox: %w", err)
	}
	session.authenticated = true

	// Persist cookies so the next login can skip the form
	if cookieData, err := s.captureCookies(runCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to capture CRM cookies")
	} else {
		creds.Cookies = cookieData
		if err := s.credentials.StoreCredentials(ctx, creds); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist CRM cookies")
		}
	}

	return nil
}

// OpenInbox navigates a session to the CRM inbox page
func (s *Service) OpenInbox(ctx context.Context, sessionID string) (err error) {
	defer s.observe(time.Now(), &err)

	session, err := s.getSession(sessionID)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(session.ctx, s.navTimeout)
	defer cancel()

	if err := s.navigate(runCtx, s.baseURLFor(ctx)+s.cfg.InboxPath); err != nil {
		return fmt.Errorf("failed to open inbox: %w", err)
	}
	return s.runActions(runCtx, chromedp.WaitVisible(selInboxTable, chromedp.ByQuery))
}

// ListInbox returns the inbox listing for a session
func (s *Service) ListInbox(ctx context.Context, sessionID string) (summaries []models.EmailSummary, err error) {
	defer s.observe(time.Now(), &err)

	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(session.ctx, s.navTimeout)
	defer cancel()

	if err := s.navigate(runCtx, s.baseURLFor(ctx)+s.cfg.InboxPath); err != nil {
		return nil, fmt.Errorf("failed to open inbox: %w", err)
	}

	var html string
	if err := s.runActions(runCtx,
		chromedp.WaitVisible(selInboxTable, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("failed to read inbox page: %w", err)
	}

	summaries, err = ParseInboxHTML(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inbox listing: %w", err)
	}

	s.logger.Debug().
		Str("session_id", sessionID).
		Int("messages", len(summaries)).
		Msg("Inbox listing fetched")

	return summaries, nil
}

// ReadMessage opens a message and returns it with the raw HTML body.
// Markdown conversion happens downstream in the email pipeline.
func (s *Service) ReadMessage(ctx context.Context, sessionID, emailID string) (message *models.EmailMessage, err error) {
	defer s.observe(time.Now(), &err)

	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(session.ctx, s.navTimeout)
	defer cancel()

	messageURL := fmt.Sprintf("%s%s/%s", s.baseURLFor(ctx), s.cfg.InboxPath, url.PathEscape(emailID))
	if err := s.navigate(runCtx, messageURL); err != nil {
		return nil, fmt.Errorf("failed to open message %s: %w", emailID, err)
	}

	var html string
	if err := s.runActions(runCtx,
		chromedp.WaitVisible(selMessageBody, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("failed to read message page: %w", err)
	}

	message, err = ParseMessageHTML(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message %s: %w", emailID, err)
	}
	message.EmailID = emailID

	s.fetchAttachments(runCtx, message)

	return message, nil
}

// fetchAttachments downloads each linked attachment inside the page so
// the CRM session's cookies authorize the request. Failures are logged
// and skipped; the message body is still usable without them.
func (s *Service) fetchAttachments(ctx context.Context, message *models.EmailMessage) {
	for i := range message.Parts {
		part := &message.Parts[i]
		if part.URL == "" {
			continue
		}
		content, contentType, err := s.downloadAttachment(ctx, part.URL)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", part.Filename).Msg("Failed to download attachment")
			continue
		}
		part.Content = content
		if part.ContentType == "" {
			part.ContentType = contentType
		}
	}
}

func (s *Service) downloadAttachment(ctx context.Context, href string) ([]byte, string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	script := fmt.Sprintf(`fetch(%q).then(r => {
		const type = r.headers.get("content-type") || "";
		return r.blob().then(b => new Promise(resolve => {
			const reader = new FileReader();
			reader.onload = () => resolve({type: type, data: reader.result.split(",")[1] || ""});
			reader.readAsDataURL(b);
		}));
	})`, href)

	var result struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}
	err := chromedp.Run(ctx, chromedp.Evaluate(script, &result, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, "", fmt.Errorf("attachment fetch failed: %w", err)
	}

	content, err := base64.StdEncoding.DecodeString(result.Data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode attachment content: %w", err)
	}
	return content, result.Type, nil
}

// SubmitReply fills the reply box and either sends the reply or files it
// as a CRM draft
func (s *Service) SubmitReply(ctx context.Context, sessionID, emailID, body string, send bool) (err error) {
	defer s.observe(time.Now(), &err)

	session, err := s.getSession(sessionID)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(session.ctx, s.navTimeout)
	defer cancel()

	messageURL := fmt.Sprintf("%s%s/%s", s.baseURLFor(ctx), s.cfg.InboxPath, url.PathEscape(emailID))
	if err := s.navigate(runCtx, messageURL); err != nil {
		return fmt.Errorf("failed to open message %s: %w", emailID, err)
	}

	action := selSaveButton
	if send {
		action = selSendButton
	}

	if err := s.runActions(runCtx,
		chromedp.WaitVisible(selReplyBox, chromedp.ByQuery),
		chromedp.SendKeys(selReplyBox, body, chromedp.ByQuery),
		chromedp.Click(action, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to submit reply for %s: %w", emailID, err)
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("email_id", emailID).
		Bool("send", send).
		Msg("Reply submitted to CRM")

	return nil
}

// Screenshot captures the session's current page as a PNG so the
// counselor can see what the automation sees
func (s *Service) Screenshot(ctx context.Context, sessionID string) (shot []byte, err error) {
	defer s.observe(time.Now(), &err)

	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(session.ctx, s.navTimeout)
	defer cancel()

	if err := s.limiter.Wait(runCtx); err != nil {
		return nil, err
	}
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&shot)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}

	s.logger.Debug().
		Str("session_id", sessionID).
		Int("bytes", len(shot)).
		Msg("Screenshot captured")

	return shot, nil
}

// Status returns session metadata for the status endpoint
func (s *Service) Status(sessionID string) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}

	return map[string]interface{}{
		"session_id":    session.id,
		"authenticated": session.authenticated,
		"created_at":    session.createdAt.Format(time.RFC3339),
		"last_used":     session.lastUsed.Format(time.RFC3339),
	}, nil
}

// CloseSession ends a CRM session and releases its tab
func (s *Service) CloseSession(sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return nil // Already closed
	}

	session.cancel()
	s.logger.Info().Str("session_id", sessionID).Msg("CRM session closed")
	return nil
}

// Shutdown closes all sessions and the browser pool
func (s *Service) Shutdown() error {
	s.mu.Lock()
	for id, session := range s.sessions {
		session.cancel()
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	return s.pool.Shutdown()
}

func (s *Service) getSession(sessionID string) (*crmSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("browser session %s not found", sessionID)
	}
	if !session.authenticated {
		return nil, fmt.Errorf("browser session %s is not authenticated", sessionID)
	}
	session.lastUsed = time.Now()
	return session, nil
}

func (s *Service) baseURLFor(ctx context.Context) string {
	if creds, err := s.credentials.GetDefaultCredentials(ctx); err == nil && creds.BaseURL != "" {
		return strings.TrimRight(creds.BaseURL, "/")
	}
	return strings.TrimRight(s.cfg.BaseURL, "/")
}

// navigate applies rate limiting before loading a page
func (s *Service) navigate(ctx context.Context, pageURL string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return chromedp.Run(ctx, chromedp.Navigate(pageURL))
}

// runActions applies rate limiting before a batch of page actions
func (s *Service) runActions(ctx context.Context, actions ...chromedp.Action) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return chromedp.Run(ctx, actions...)
}

// elementExists checks for a selector without waiting for it
func (s *Service) elementExists(ctx context.Context, selector string) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var found bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := chromedp.Run(checkCtx, chromedp.Evaluate(script, &found)); err != nil {
		return false
	}
	return found
}

// captureCookies serializes the tab's cookies for persistence
func (s *Service) captureCookies(ctx context.Context) ([]byte, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return json.Marshal(cookies)
}

// restoreCookies loads serialized cookies into the tab before navigation
func (s *Service) restoreCookies(ctx context.Context, data []byte, baseURL string) error {
	var cookies []*network.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("failed to decode saved cookies: %w", err)
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			domain := c.Domain
			if domain == "" {
				domain = parsed.Hostname()
			}
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if err := param.Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}))
}
