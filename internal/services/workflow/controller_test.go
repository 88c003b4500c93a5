package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

type fakeBrowser struct {
	loginErr    error
	inboxErr    error
	summaries   []models.EmailSummary
	closedCount int
}

func (f *fakeBrowser) Login(ctx context.Context) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "browser-1", nil
}

func (f *fakeBrowser) OpenInbox(ctx context.Context, sessionID string) error {
	return f.inboxErr
}

func (f *fakeBrowser) ListInbox(ctx context.Context, sessionID string) ([]models.EmailSummary, error) {
	return f.summaries, nil
}

func (f *fakeBrowser) CloseSession(sessionID string) error {
	f.closedCount++
	return nil
}

type fakeEmail struct {
	message   *models.EmailMessage
	draft     *models.ReplyDraft
	submitErr error
	submitted []bool
}

func (f *fakeEmail) ReadEmail(ctx context.Context, browserSessionID, emailID string) (*models.EmailMessage, error) {
	if f.message == nil {
		return nil, fmt.Errorf("no message")
	}
	return f.message, nil
}

func (f *fakeEmail) GenerateDraft(ctx context.Context, sessionID, browserSessionID, emailID string) (*models.ReplyDraft, error) {
	if f.draft == nil {
		return nil, fmt.Errorf("no draft")
	}
	return f.draft, nil
}

func (f *fakeEmail) SubmitDraft(ctx context.Context, browserSessionID, draftID string, send bool) (*models.ReplyDraft, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, send)
	return f.draft, nil
}

type memorySessions struct {
	mu    sync.Mutex
	saved map[string]*models.Session
}

func newMemorySessions() *memorySessions {
	return &memorySessions{saved: make(map[string]*models.Session)}
}

func (m *memorySessions) SaveSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[session.ID] = session
	return nil
}

func (m *memorySessions) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.saved[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return session, nil
}

func (m *memorySessions) ListSessions(ctx context.Context) ([]*models.Session, error) {
	return nil, nil
}

func (m *memorySessions) DeleteSession(ctx context.Context, id string) error {
	return nil
}

type nullEvents struct{}

func (nullEvents) Subscribe(interfaces.EventType, interfaces.EventHandler) error { return nil }
func (nullEvents) Publish(context.Context, interfaces.Event) error               { return nil }
func (nullEvents) PublishSync(context.Context, interfaces.Event) error           { return nil }
func (nullEvents) Close() error                                                  { return nil }

type countingTracker struct {
	mu      sync.Mutex
	tracked map[string]int
}

func (t *countingTracker) Track(service string, fn func() error) error {
	t.mu.Lock()
	if t.tracked == nil {
		t.tracked = make(map[string]int)
	}
	t.tracked[service]++
	t.mu.Unlock()
	return fn()
}

func (t *countingTracker) Record(string, bool, time.Duration, error) {}

func newTestController(b *fakeBrowser, e *fakeEmail) (*Controller, *memorySessions) {
	cfg := common.NewDefaultConfig()
	sessions := newMemorySessions()
	ctrl := NewController(cfg, b, e, sessions, nullEvents{}, common.GetLogger())
	return ctrl, sessions
}

func TestCreateSessionStartsListening(t *testing.T) {
	ctrl, sessions := newTestController(&fakeBrowser{}, &fakeEmail{})

	session, err := ctrl.CreateSession(t.Context())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if session.CurrentState != models.StateListening {
		t.Errorf("Expected listening state, got %s", session.CurrentState)
	}
	if len(session.Events) != 1 {
		t.Errorf("Expected one event, got %d", len(session.Events))
	}
	if _, ok := sessions.saved[session.ID]; !ok {
		t.Error("Expected session persisted on create")
	}
}

func TestLoginCommand(t *testing.T) {
	ctrl, _ := newTestController(&fakeBrowser{}, &fakeEmail{})

	result, err := ctrl.ProcessCommand(t.Context(), "please log in")
	if err != nil {
		t.Fatalf("ProcessCommand failed: %v", err)
	}
	if result.Status != "success" {
		t.Errorf("Expected success, got %s: %s", result.Status, result.Message)
	}

	session, err := ctrl.GetSession(result.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.BrowserSessionID != "browser-1" {
		t.Errorf("Expected browser session stored, got %q", session.BrowserSessionID)
	}
	if session.CurrentState != models.StateListening {
		t.Errorf("Expected listening after login, got %s", session.CurrentState)
	}
}

func TestLoginFailureEntersErrorState(t *testing.T) {
	ctrl, _ := newTestController(&fakeBrowser{loginErr: fmt.Errorf("bad credentials")}, &fakeEmail{})

	result, err := ctrl.ProcessCommand(t.Context(), "login")
	if err == nil {
		t.Fatal("Expected error from failed login")
	}
	if result.Status != "error" {
		t.Errorf("Expected error status, got %s", result.Status)
	}

	session, _ := ctrl.GetSession(result.SessionID)
	if session.CurrentState != models.StateError {
		t.Errorf("Expected error state, got %s", session.CurrentState)
	}
}

func TestInboxRequiresAuthentication(t *testing.T) {
	ctrl, _ := newTestController(&fakeBrowser{}, &fakeEmail{})

	_, err := ctrl.ProcessCommand(t.Context(), "open the inbox")
	if err == nil {
		t.Fatal("Expected error opening inbox without login")
	}
}

func TestReadEmailSelectsNewestMessage(t *testing.T) {
	b := &fakeBrowser{summaries: []models.EmailSummary{
		{EmailID: "msg-9", Subject: "Deadline question"},
		{EmailID: "msg-3", Subject: "Older"},
	}}
	e := &fakeEmail{message: &models.EmailMessage{EmailID: "msg-9", Subject: "Deadline question", Sender: "a@b.edu"}}
	ctrl, _ := newTestController(b, e)

	if _, err := ctrl.ProcessCommand(t.Context(), "login"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	result, err := ctrl.ProcessCommand(t.Context(), "read the first email")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if result.Email == nil || result.Email.EmailID != "msg-9" {
		t.Fatalf("Expected newest message read, got %+v", result.Email)
	}

	session, _ := ctrl.GetSession(result.SessionID)
	if session.CurrentEmailID != "msg-9" {
		t.Errorf("Expected current email stored, got %q", session.CurrentEmailID)
	}
}

func TestGenerateRequiresEmail(t *testing.T) {
	ctrl, _ := newTestController(&fakeBrowser{}, &fakeEmail{})

	if _, err := ctrl.ProcessCommand(t.Context(), "login"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := ctrl.ProcessCommand(t.Context(), "generate a reply"); err == nil {
		t.Fatal("Expected error generating without a selected email")
	}
}

func TestFullWorkflowSendsAfterReview(t *testing.T) {
	b := &fakeBrowser{summaries: []models.EmailSummary{{EmailID: "msg-1", Subject: "Hi"}}}
	e := &fakeEmail{
		message: &models.EmailMessage{EmailID: "msg-1", Subject: "Hi", Sender: "a@b.edu"},
		draft:   &models.ReplyDraft{ID: "draft-1", EmailID: "msg-1", State: models.DraftStaged},
	}
	ctrl, _ := newTestController(b, e)

	ctx := t.Context()
	for _, command := range []string{"login", "open inbox", "read email", "generate response"} {
		if _, err := ctrl.ProcessCommand(ctx, command); err != nil {
			t.Fatalf("command %q failed: %v", command, err)
		}
	}

	result, err := ctrl.ProcessCommand(ctx, "send it")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if result.Status != "success" {
		t.Errorf("Expected success, got %s", result.Status)
	}
	if len(e.submitted) != 1 || !e.submitted[0] {
		t.Errorf("Expected one send submission, got %v", e.submitted)
	}

	session, _ := ctrl.GetSession(result.SessionID)
	if session.CurrentEmailID != "" || session.DraftID != "" {
		t.Error("Expected email and draft selection cleared after submit")
	}
}

func TestSaveDraftTakesPriorityOverSend(t *testing.T) {
	b := &fakeBrowser{summaries: []models.EmailSummary{{EmailID: "msg-1", Subject: "Hi"}}}
	e := &fakeEmail{
		message: &models.EmailMessage{EmailID: "msg-1", Subject: "Hi"},
		draft:   &models.ReplyDraft{ID: "draft-1", EmailID: "msg-1", State: models.DraftStaged},
	}
	ctrl, _ := newTestController(b, e)

	ctx := t.Context()
	for _, command := range []string{"login", "read email", "generate reply"} {
		if _, err := ctrl.ProcessCommand(ctx, command); err != nil {
			t.Fatalf("command %q failed: %v", command, err)
		}
	}

	if _, err := ctrl.ProcessCommand(ctx, "save as draft"); err != nil {
		t.Fatalf("save draft failed: %v", err)
	}
	if len(e.submitted) != 1 || e.submitted[0] {
		t.Errorf("Expected one save submission, got %v", e.submitted)
	}
}

func TestSubmitBlockedWithoutReview(t *testing.T) {
	e := &fakeEmail{draft: &models.ReplyDraft{ID: "draft-1"}}
	ctrl, _ := newTestController(&fakeBrowser{}, e)

	session, _ := ctrl.CreateSession(t.Context())
	session.CurrentEmailID = "msg-1"
	session.DraftID = "draft-1"

	// Listening, never reached reviewing
	_, err := ctrl.ProcessSessionCommand(t.Context(), session.ID, "send it")
	if err == nil {
		t.Fatal("Expected review gate to block submission")
	}
	if len(e.submitted) != 0 {
		t.Errorf("Expected no submissions, got %v", e.submitted)
	}
}

func TestUnknownCommand(t *testing.T) {
	ctrl, _ := newTestController(&fakeBrowser{}, &fakeEmail{})

	result, err := ctrl.ProcessCommand(t.Context(), "make me a sandwich")
	if err == nil {
		t.Fatal("Expected error for unknown command")
	}

	session, _ := ctrl.GetSession(result.SessionID)
	if session.CurrentState != models.StateError {
		t.Errorf("Expected error state, got %s", session.CurrentState)
	}
}

func TestLookupSessionFallsBackToStorage(t *testing.T) {
	ctrl, sessions := newTestController(&fakeBrowser{}, &fakeEmail{})

	// Simulate a session persisted before a restart
	persisted := &models.Session{ID: "sess_old", StartedAt: time.Now().Add(-time.Hour)}
	if err := sessions.SaveSession(t.Context(), persisted); err != nil {
		t.Fatal(err)
	}

	got, err := ctrl.LookupSession(t.Context(), "sess_old")
	if err != nil {
		t.Fatalf("LookupSession failed: %v", err)
	}
	if got.ID != "sess_old" {
		t.Errorf("Expected persisted session, got %q", got.ID)
	}

	if _, err := ctrl.LookupSession(t.Context(), "sess_missing"); err == nil {
		t.Error("Expected error for a session in neither memory nor storage")
	}
}

func TestDispatchTracksWorkflowRequests(t *testing.T) {
	ctrl, _ := newTestController(&fakeBrowser{}, &fakeEmail{})
	tracker := &countingTracker{}
	ctrl.SetTracker(tracker)

	if _, err := ctrl.ProcessCommand(t.Context(), "login"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if got := tracker.tracked["workflow"]; got != 1 {
		t.Errorf("Expected one tracked workflow request, got %d", got)
	}

	// Failed commands are still counted
	ctrl.ProcessCommand(t.Context(), "make me a sandwich")
	if got := tracker.tracked["workflow"]; got != 2 {
		t.Errorf("Expected two tracked workflow requests, got %d", got)
	}
}

func TestEndSessionUnknownID(t *testing.T) {
	ctrl, _ := newTestController(&fakeBrowser{}, &fakeEmail{})

	if err := ctrl.EndSession(t.Context(), "sess_does_not_exist"); err == nil {
		t.Fatal("Expected error ending a session that does not exist")
	}
}

func TestEndSessionClosesBrowser(t *testing.T) {
	b := &fakeBrowser{}
	ctrl, _ := newTestController(b, &fakeEmail{})

	result, err := ctrl.ProcessCommand(t.Context(), "login")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := ctrl.EndSession(t.Context(), result.SessionID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if b.closedCount != 1 {
		t.Errorf("Expected browser session closed once, got %d", b.closedCount)
	}
	if _, err := ctrl.GetSession(result.SessionID); err == nil {
		t.Error("Expected session removed after end")
	}
}

func TestActiveSessionPicksMostRecent(t *testing.T) {
	ctrl, _ := newTestController(&fakeBrowser{}, &fakeEmail{})

	first, _ := ctrl.CreateSession(t.Context())
	first.StartedAt = time.Now().Add(-time.Hour)
	second, _ := ctrl.CreateSession(t.Context())

	if active := ctrl.activeSession(); active == nil || active.ID != second.ID {
		t.Errorf("Expected most recent session active, got %+v", active)
	}
}

func TestSweepStale(t *testing.T) {
	ctrl, _ := newTestController(&fakeBrowser{}, &fakeEmail{})
	ctrl.config.Workflow.StaleAfter = "1h"

	stale, _ := ctrl.CreateSession(t.Context())
	stale.StartedAt = time.Now().Add(-3 * time.Hour)
	stale.Events[0].Timestamp = time.Now().Add(-3 * time.Hour)
	fresh, _ := ctrl.CreateSession(t.Context())

	ended := ctrl.SweepStale(t.Context())
	if ended != 1 {
		t.Fatalf("Expected one stale session ended, got %d", ended)
	}
	if _, err := ctrl.GetSession(stale.ID); err == nil {
		t.Error("Expected stale session removed")
	}
	if _, err := ctrl.GetSession(fresh.ID); err != nil {
		t.Error("Expected fresh session retained")
	}
}

func TestMaxEventsCap(t *testing.T) {
	ctrl, _ := newTestController(&fakeBrowser{}, &fakeEmail{})
	ctrl.config.Workflow.MaxEvents = 5

	session, _ := ctrl.CreateSession(t.Context())
	for i := 0; i < 20; i++ {
		ctrl.recordEvent(t.Context(), session, models.StateListening, "tick", nil)
	}

	if len(session.Events) != 5 {
		t.Errorf("Expected event history capped at 5, got %d", len(session.Events))
	}
}
