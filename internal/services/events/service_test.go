package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/interfaces"
)

func TestPublishSync(t *testing.T) {
	service := NewService(arbor.NewLogger())

	var calls int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	if err := service.Subscribe(interfaces.EventSessionCreated, handler); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if err := service.Subscribe(interfaces.EventSessionCreated, handler); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	err := service.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventSessionCreated,
		Payload: map[string]interface{}{"session_id": "sess-1"},
	})
	if err != nil {
		t.Fatalf("PublishSync() error: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("handler calls = %d, want 2", got)
	}
}

func TestPublishSyncHandlerError(t *testing.T) {
	service := NewService(arbor.NewLogger())

	failing := func(ctx context.Context, event interfaces.Event) error {
		return fmt.Errorf("handler broke")
	}
	if err := service.Subscribe(interfaces.EventDraftStaged, failing); err != nil {
		t.Fatal(err)
	}

	err := service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventDraftStaged})
	if err == nil {
		t.Fatal("expected error from failing handler")
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	service := NewService(arbor.NewLogger())

	if err := service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventInboxSynced}); err != nil {
		t.Errorf("Publish() with no subscribers should not error, got %v", err)
	}
}

func TestPublishAsync(t *testing.T) {
	service := NewService(arbor.NewLogger())

	done := make(chan struct{})
	handler := func(ctx context.Context, event interfaces.Event) error {
		close(done)
		return nil
	}
	if err := service.Subscribe(interfaces.EventWakeWordDetected, handler); err != nil {
		t.Fatal(err)
	}

	if err := service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventWakeWordDetected}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	service := NewService(arbor.NewLogger())

	if err := service.Subscribe(interfaces.EventSessionEnded, nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}
