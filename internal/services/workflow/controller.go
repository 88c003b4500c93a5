// -----------------------------------------------------------------------
// Workflow Controller - orchestrates the counselor session state machine.
// Voice commands arrive as events, get matched by keyword, and drive the
// browser, drafting, and submission services. Every transition is an
// append-only session event.
// -----------------------------------------------------------------------

package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

// Feedback speaks confirmations back to the operator. Satisfied by the
// voice service; nil when voice is disabled.
type Feedback interface {
	Speak(ctx context.Context, text string)
}

// BrowserDriver is the slice of the browser service the controller
// needs for login, navigation, and session teardown
type BrowserDriver interface {
	Login(ctx context.Context) (string, error)
	OpenInbox(ctx context.Context, sessionID string) error
	ListInbox(ctx context.Context, sessionID string) ([]models.EmailSummary, error)
	CloseSession(sessionID string) error
}

// EmailPipeline is the slice of the email service the controller needs
// for reading, drafting, and submission
type EmailPipeline interface {
	ReadEmail(ctx context.Context, browserSessionID, emailID string) (*models.EmailMessage, error)
	GenerateDraft(ctx context.Context, sessionID, browserSessionID, emailID string) (*models.ReplyDraft, error)
	SubmitDraft(ctx context.Context, browserSessionID, draftID string, send bool) (*models.ReplyDraft, error)
}

// CommandResult carries the outcome of a dispatched command
type CommandResult struct {
	Status    string               `json:"status"`
	Message   string               `json:"message"`
	SessionID string               `json:"session_id"`
	Email     *models.EmailMessage `json:"email,omitempty"`
	Draft     *models.ReplyDraft   `json:"draft,omitempty"`
}

// Controller owns the active counselor sessions
type Controller struct {
	config   *common.Config
	browser  BrowserDriver
	email    EmailPipeline
	sessions interfaces.SessionStorage
	events   interfaces.EventService
	feedback Feedback
	tracker  interfaces.Tracker
	logger   arbor.ILogger

	mu     sync.RWMutex
	active map[string]*models.Session
}

// NewController creates the workflow controller
func NewController(
	cfg *common.Config,
	browserSvc BrowserDriver,
	emailSvc EmailPipeline,
	sessions interfaces.SessionStorage,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Controller {
	return &Controller{
		config:   cfg,
		browser:  browserSvc,
		email:    emailSvc,
		sessions: sessions,
		events:   events,
		logger:   logger,
		active:   make(map[string]*models.Session),
	}
}

// SetFeedback attaches the spoken feedback sink
func (c *Controller) SetFeedback(f Feedback) {
	c.feedback = f
}

// SetTracker attaches the request metrics recorder
func (c *Controller) SetTracker(t interfaces.Tracker) {
	c.tracker = t
}

// Start subscribes the controller to voice events
func (c *Controller) Start() error {
	if err := c.events.Subscribe(interfaces.EventWakeWordDetected, c.onWakeWord); err != nil {
		return fmt.Errorf("failed to subscribe to wake word events: %w", err)
	}
	if err := c.events.Subscribe(interfaces.EventVoiceCommand, c.onVoiceCommand); err != nil {
		return fmt.Errorf("failed to subscribe to voice command events: %w", err)
	}

	c.logger.Info().Msg("Workflow controller started")
	return nil
}

func (c *Controller) onWakeWord(ctx context.Context, event interfaces.Event) error {
	// A wake word with no trailing command opens a fresh session only
	// when none is already listening
	if c.activeSession() == nil {
		_, err := c.CreateSession(ctx)
		return err
	}
	return nil
}

func (c *Controller) onVoiceCommand(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected voice command payload %T", event.Payload)
	}
	command, _ := payload["command"].(string)
	if command == "" {
		return nil
	}

	_, err := c.ProcessCommand(ctx, command)
	return err
}

// CreateSession starts a new counselor session in the listening state
func (c *Controller) CreateSession(ctx context.Context) (*models.Session, error) {
	session := &models.Session{
		ID:        common.NewSessionID(),
		StartedAt: time.Now(),
	}
	c.recordEvent(ctx, session, models.StateListening, "Session created, listening for commands", nil)

	c.mu.Lock()
	c.active[session.ID] = session
	c.mu.Unlock()

	c.logger.Info().Str("session_id", session.ID).Msg("Workflow session created")

	c.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventSessionCreated,
		Payload: map[string]interface{}{"session_id": session.ID},
	})
	c.speak(ctx, "Listening")

	return session, nil
}

// EndSession closes a session and its browser tab
func (c *Controller) EndSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	session, ok := c.active[sessionID]
	if ok {
		delete(c.active, sessionID)
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}

	if session.BrowserSessionID != "" {
		if err := c.browser.CloseSession(session.BrowserSessionID); err != nil {
			c.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to close browser session")
		}
	}

	now := time.Now()
	session.EndedAt = &now
	c.recordEvent(ctx, session, models.StateIdle, "Session ended", nil)

	c.logger.Info().Str("session_id", sessionID).Msg("Workflow session ended")

	c.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventSessionEnded,
		Payload: map[string]interface{}{"session_id": sessionID},
	})

	return nil
}

// GetSession returns one active session
func (c *Controller) GetSession(sessionID string) (*models.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	session, ok := c.active[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return session, nil
}

// LookupSession returns an active session, falling back to persisted
// storage so the dashboard can inspect sessions across restarts
func (c *Controller) LookupSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if session, err := c.GetSession(sessionID); err == nil {
		return session, nil
	}
	return c.sessions.GetSession(ctx, sessionID)
}

// GetAllSessions returns all active sessions, newest first
func (c *Controller) GetAllSessions() []*models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sessions := make([]*models.Session, 0, len(c.active))
	for _, session := range c.active {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions
}

// ProcessCommand dispatches a command against the most recent active
// session, creating one when none exists
func (c *Controller) ProcessCommand(ctx context.Context, command string) (*CommandResult, error) {
	session := c.activeSession()
	if session == nil {
		created, err := c.CreateSession(ctx)
		if err != nil {
			return nil, err
		}
		session = created
	}
	return c.dispatch(ctx, session, command)
}

// ProcessSessionCommand dispatches a command against a specific session
func (c *Controller) ProcessSessionCommand(ctx context.Context, sessionID, command string) (*CommandResult, error) {
	session, err := c.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, session, command)
}

// dispatch runs a command through the metrics tracker
func (c *Controller) dispatch(ctx context.Context, session *models.Session, command string) (*CommandResult, error) {
	if c.tracker == nil {
		return c.runCommand(ctx, session, command)
	}

	var result *CommandResult
	err := c.tracker.Track("workflow", func() error {
		var runErr error
		result, runErr = c.runCommand(ctx, session, command)
		return runErr
	})
	return result, err
}

// runCommand matches a command by keyword and runs the handler. Keyword
// matching over NLU is deliberate: six commands spoken in a quiet
// office do not need a parser.
func (c *Controller) runCommand(ctx context.Context, session *models.Session, command string) (*CommandResult, error) {
	c.logger.Info().
		Str("session_id", session.ID).
		Str("command", command).
		Msg("Processing command")

	c.recordEvent(ctx, session, models.StateProcessingCommand, "Processing command: "+command,
		map[string]interface{}{"command": command})

	lower := strings.ToLower(command)

	switch {
	case strings.Contains(lower, "login") || strings.Contains(lower, "log in"):
		return c.handleLogin(ctx, session)
	case strings.Contains(lower, "inbox") || strings.Contains(lower, "emails"):
		return c.handleInbox(ctx, session)
	case strings.Contains(lower, "read") && (strings.Contains(lower, "email") || strings.Contains(lower, "message")):
		return c.handleRead(ctx, session)
	case strings.Contains(lower, "generate") || strings.Contains(lower, "respond") || strings.Contains(lower, "reply"):
		return c.handleGenerate(ctx, session)
	case strings.Contains(lower, "save") && strings.Contains(lower, "draft"):
		return c.handleSubmit(ctx, session, false)
	case strings.Contains(lower, "submit") || strings.Contains(lower, "send"):
		return c.handleSubmit(ctx, session, true)
	default:
		return c.fail(ctx, session, "Unknown command: "+command)
	}
}

func (c *Controller) handleLogin(ctx context.Context, session *models.Session) (*CommandResult, error) {
	c.recordEvent(ctx, session, models.StateAuthenticating, "Authenticating to the CRM", nil)

	browserSessionID, err := c.browser.Login(ctx)
	if err != nil {
		return c.fail(ctx, session, "Authentication failed: "+err.Error())
	}

	session.BrowserSessionID = browserSessionID
	c.recordEvent(ctx, session, models.StateListening, "Authentication successful, listening for next command", nil)
	c.speak(ctx, "Logged in")

	return c.ok(session, "Authentication successful"), nil
}

func (c *Controller) handleInbox(ctx context.Context, session *models.Session) (*CommandResult, error) {
	if session.BrowserSessionID == "" {
		return c.fail(ctx, session, "Cannot open inbox: not authenticated")
	}

	c.recordEvent(ctx, session, models.StateNavigating, "Navigating to inbox", nil)

	if err := c.browser.OpenInbox(ctx, session.BrowserSessionID); err != nil {
		return c.fail(ctx, session, "Navigation failed: "+err.Error())
	}

	c.recordEvent(ctx, session, models.StateListening, "Inbox open, listening for next command", nil)
	c.speak(ctx, "Inbox open")

	return c.ok(session, "Navigation successful"), nil
}

func (c *Controller) handleRead(ctx context.Context, session *models.Session) (*CommandResult, error) {
	if session.BrowserSessionID == "" {
		return c.fail(ctx, session, "Cannot read email: not authenticated")
	}

	c.recordEvent(ctx, session, models.StateReadingEmail, "Reading email", nil)

	// Read the newest message unless one is already selected
	emailID := session.CurrentEmailID
	if emailID == "" {
		summaries, err := c.browser.ListInbox(ctx, session.BrowserSessionID)
		if err != nil {
			return c.fail(ctx, session, "Failed to list inbox: "+err.Error())
		}
		if len(summaries) == 0 {
			return c.fail(ctx, session, "Inbox is empty")
		}
		emailID = summaries[0].EmailID
	}

	msg, err := c.email.ReadEmail(ctx, session.BrowserSessionID, emailID)
	if err != nil {
		return c.fail(ctx, session, "Failed to read email: "+err.Error())
	}

	session.CurrentEmailID = msg.EmailID
	c.recordEvent(ctx, session, models.StateListening, "Email read: "+msg.Subject,
		map[string]interface{}{"email_id": msg.EmailID, "subject": msg.Subject})
	c.speak(ctx, "Message from "+msg.Sender+". Subject: "+msg.Subject)

	result := c.ok(session, "Email read successfully")
	result.Email = msg
	return result, nil
}

func (c *Controller) handleGenerate(ctx context.Context, session *models.Session) (*CommandResult, error) {
	if session.CurrentEmailID == "" {
		return c.fail(ctx, session, "Cannot generate response: no email selected")
	}

	c.recordEvent(ctx, session, models.StateGeneratingResponse, "Generating email response", nil)

	draft, err := c.email.GenerateDraft(ctx, session.ID, session.BrowserSessionID, session.CurrentEmailID)
	if err != nil {
		return c.fail(ctx, session, "Failed to generate response: "+err.Error())
	}

	session.DraftID = draft.ID
	c.recordEvent(ctx, session, models.StateReviewing, "Response generated, ready for review",
		map[string]interface{}{"draft_id": draft.ID, "intent": string(draft.Intent)})
	c.speak(ctx, "Draft ready for review")

	result := c.ok(session, "Response generated")
	result.Draft = draft
	return result, nil
}

func (c *Controller) handleSubmit(ctx context.Context, session *models.Session, send bool) (*CommandResult, error) {
	if session.CurrentEmailID == "" {
		return c.fail(ctx, session, "Cannot submit response: no email selected")
	}
	if session.DraftID == "" {
		return c.fail(ctx, session, "Cannot submit response: no draft staged")
	}
	if c.config.Workflow.RequireReview && session.CurrentState != models.StateReviewing {
		return c.fail(ctx, session, "Cannot submit response: draft has not been reviewed")
	}

	action := "draft"
	if send {
		action = "email"
	}
	c.recordEvent(ctx, session, models.StateSubmitting, "Submitting response as "+action, nil)

	draft, err := c.email.SubmitDraft(ctx, session.BrowserSessionID, session.DraftID, send)
	if err != nil {
		return c.fail(ctx, session, "Failed to submit response: "+err.Error())
	}

	verb := "saved as draft"
	if send {
		verb = "sent"
	}
	c.recordEvent(ctx, session, models.StateListening, "Response "+verb+" successfully",
		map[string]interface{}{"draft_id": draft.ID})
	c.speak(ctx, "Response "+verb)

	// Clear selection so the next read starts fresh
	session.CurrentEmailID = ""
	session.DraftID = ""
	c.persist(ctx, session)

	return c.ok(session, "Response "+verb+" successfully"), nil
}

// SweepStale ends sessions whose last activity is older than the
// configured window. Returns the number of sessions ended.
func (c *Controller) SweepStale(ctx context.Context) int {
	staleAfter := common.ParseDurationOr(c.config.Workflow.StaleAfter, 2*time.Hour)
	cutoff := time.Now().Add(-staleAfter)

	c.mu.RLock()
	var stale []string
	for id, session := range c.active {
		last := session.StartedAt
		if event := session.LastEvent(); event != nil {
			last = event.Timestamp
		}
		if last.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	c.mu.RUnlock()

	for _, id := range stale {
		if err := c.EndSession(ctx, id); err != nil {
			c.logger.Error().Err(err).Str("session_id", id).Msg("Failed to end stale session")
		}
	}

	if len(stale) > 0 {
		c.logger.Info().Int("count", len(stale)).Msg("Stale sessions ended")
	}
	return len(stale)
}

// Shutdown ends all active sessions
func (c *Controller) Shutdown(ctx context.Context) {
	for _, session := range c.GetAllSessions() {
		if err := c.EndSession(ctx, session.ID); err != nil {
			c.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to end session on shutdown")
		}
	}
}

// activeSession returns the most recently started non-idle session
func (c *Controller) activeSession() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var latest *models.Session
	for _, session := range c.active {
		if session.CurrentState == models.StateIdle {
			continue
		}
		if latest == nil || session.StartedAt.After(latest.StartedAt) {
			latest = session
		}
	}
	return latest
}

// recordEvent appends a session event, enforces the history cap,
// persists, and notifies listeners
func (c *Controller) recordEvent(ctx context.Context, session *models.Session, state models.WorkflowState, message string, data map[string]interface{}) {
	event := session.AddEvent(state, message, data)

	if max := c.config.Workflow.MaxEvents; max > 0 && len(session.Events) > max {
		session.Events = session.Events[len(session.Events)-max:]
	}

	c.persist(ctx, session)

	c.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventWorkflowStateChanged,
		Payload: map[string]interface{}{
			"session_id": session.ID,
			"state":      string(state),
			"message":    message,
			"timestamp":  event.Timestamp.Format(time.RFC3339),
		},
	})
}

func (c *Controller) persist(ctx context.Context, session *models.Session) {
	if !c.config.Workflow.PersistOnEvent {
		return
	}
	if err := c.sessions.SaveSession(ctx, session); err != nil {
		c.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to persist session")
	}
}

// fail records an error event and returns the failure as a Go error
func (c *Controller) fail(ctx context.Context, session *models.Session, message string) (*CommandResult, error) {
	c.logger.Warn().Str("session_id", session.ID).Msg(message)
	c.recordEvent(ctx, session, models.StateError, message, nil)
	c.speak(ctx, "Sorry, that did not work")

	return &CommandResult{
		Status:    "error",
		Message:   message,
		SessionID: session.ID,
	}, fmt.Errorf("%s", message)
}

func (c *Controller) ok(session *models.Session, message string) *CommandResult {
	return &CommandResult{
		Status:    "success",
		Message:   message,
		SessionID: session.ID,
	}
}

func (c *Controller) speak(ctx context.Context, text string) {
	if c.feedback != nil {
		c.feedback.Speak(ctx, text)
	}
}
