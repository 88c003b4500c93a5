package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
)

type capturedEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (c *capturedEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}

func (c *capturedEvents) Publish(ctx context.Context, event interfaces.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturedEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return c.Publish(ctx, event)
}

func (c *capturedEvents) Close() error { return nil }

func (c *capturedEvents) all() []interfaces.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interfaces.Event(nil), c.events...)
}

func newTestService(events interfaces.EventService) *Service {
	cfg := &common.VoiceConfig{
		Enabled:    true,
		WakeWord:   "hey slate",
		SampleRate: 16000,
	}
	return NewService(cfg, events, common.GetLogger())
}

func TestNormalizeTranscript(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Hey, Slate!", "hey slate"},
		{"HEY SLATE open the inbox.", "hey slate open the inbox"},
		{"  spaced   out  ", "spaced out"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeTranscript(tt.in); got != tt.expected {
			t.Errorf("normalizeTranscript(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestHandleTranscriptPublishesCommand(t *testing.T) {
	events := &capturedEvents{}
	svc := newTestService(events)

	svc.handleTranscript(context.Background(), "Hey Slate, open the inbox")

	published := events.all()
	if len(published) != 2 {
		t.Fatalf("Expected wake word and command events, got %d", len(published))
	}
	if published[0].Type != interfaces.EventWakeWordDetected {
		t.Errorf("Expected wake word event first, got %s", published[0].Type)
	}
	if published[1].Type != interfaces.EventVoiceCommand {
		t.Errorf("Expected voice command event, got %s", published[1].Type)
	}

	payload, ok := published[1].Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map payload, got %T", published[1].Payload)
	}
	if payload["command"] != "open the inbox" {
		t.Errorf("Expected wake word stripped from command, got %q", payload["command"])
	}
}

func TestHandleTranscriptIgnoresWithoutWakeWord(t *testing.T) {
	events := &capturedEvents{}
	svc := newTestService(events)

	svc.handleTranscript(context.Background(), "just some background chatter")

	if got := len(events.all()); got != 0 {
		t.Errorf("Expected no events without wake word, got %d", got)
	}
}

func TestHandleTranscriptWakeWordOnly(t *testing.T) {
	events := &capturedEvents{}
	svc := newTestService(events)

	svc.handleTranscript(context.Background(), "Hey Slate")

	published := events.all()
	if len(published) != 1 {
		t.Fatalf("Expected only the wake word event, got %d", len(published))
	}
	if published[0].Type != interfaces.EventWakeWordDetected {
		t.Errorf("Expected wake word event, got %s", published[0].Type)
	}
}

func TestDurationDefaults(t *testing.T) {
	svc := newTestService(&capturedEvents{})

	if svc.silenceCutoff != 1500*time.Millisecond {
		t.Errorf("Expected default silence cutoff 1.5s, got %s", svc.silenceCutoff)
	}
	if svc.maxUtterance != 30*time.Second {
		t.Errorf("Expected default max utterance 30s, got %s", svc.maxUtterance)
	}
}
