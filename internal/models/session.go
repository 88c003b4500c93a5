package models

import "time"

// WorkflowState represents the current state of a counselor session
type WorkflowState string

const (
	StateIdle               WorkflowState = "idle"
	StateListening          WorkflowState = "listening"
	StateProcessingCommand  WorkflowState = "processing_command"
	StateAuthenticating     WorkflowState = "authenticating"
	StateNavigating         WorkflowState = "navigating"
	StateReadingEmail       WorkflowState = "reading_email"
	StateGeneratingResponse WorkflowState = "generating_response"
	StateReviewing          WorkflowState = "reviewing"
	StateSubmitting         WorkflowState = "submitting"
	StateError              WorkflowState = "error"
)

// WorkflowEvent is a single entry in a session's state history
type WorkflowEvent struct {
	State     WorkflowState          `json:"state"`
	Timestamp time.Time              `json:"timestamp"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Session is one counselor workflow session. The event history is
// append-only; CurrentState always mirrors the state of the last event.
type Session struct {
	ID               string          `json:"id"`
	BrowserSessionID string          `json:"browser_session_id,omitempty"`
	CurrentEmailID   string          `json:"current_email_id,omitempty"`
	CurrentState     WorkflowState   `json:"current_state"`
	DraftID          string          `json:"draft_id,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	EndedAt          *time.Time      `json:"ended_at,omitempty"`
	Events           []WorkflowEvent `json:"events"`
}

// AddEvent appends an event to the session history and advances the state
func (s *Session) AddEvent(state WorkflowState, message string, data map[string]interface{}) WorkflowEvent {
	event := WorkflowEvent{
		State:     state,
		Timestamp: time.Now(),
		Message:   message,
		Data:      data,
	}
	s.Events = append(s.Events, event)
	s.CurrentState = state
	return event
}

// LastEvent returns the most recent event, or nil for a fresh session
func (s *Session) LastEvent() *WorkflowEvent {
	if len(s.Events) == 0 {
		return nil
	}
	return &s.Events[len(s.Events)-1]
}

// Active reports whether the session is still receiving commands
func (s *Session) Active() bool {
	return s.EndedAt == nil && s.CurrentState != StateIdle
}

// HasDraft reports whether a reply draft is staged for review
func (s *Session) HasDraft() bool {
	return s.DraftID != ""
}

// Summary returns the session shape exposed over the API
func (s *Session) Summary() map[string]interface{} {
	summary := map[string]interface{}{
		"session_id":         s.ID,
		"browser_session_id": s.BrowserSessionID,
		"current_state":      s.CurrentState,
		"current_email_id":   s.CurrentEmailID,
		"has_draft":          s.HasDraft(),
		"start_time":         s.StartedAt.Format(time.RFC3339),
		"events":             len(s.Events),
	}
	if last := s.LastEvent(); last != nil {
		summary["last_event"] = last
	}
	return summary
}
