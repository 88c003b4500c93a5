package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestSessionPersistence(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewSessionStorage(db, logger)

	ctx := context.Background()

	session := &models.Session{
		ID:           "sess-1",
		CurrentState: models.StateIdle,
		StartedAt:    time.Now(),
	}
	session.AddEvent(models.StateListening, "voice activated", nil)

	if err := storage.SaveSession(ctx, session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	loaded, err := storage.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}

	if loaded.CurrentState != models.StateListening {
		t.Errorf("CurrentState = %s, want listening", loaded.CurrentState)
	}
	if len(loaded.Events) != 1 {
		t.Errorf("Events length = %d, want 1", len(loaded.Events))
	}
	if loaded.Events[0].Message != "voice activated" {
		t.Errorf("Event message = %s, want 'voice activated'", loaded.Events[0].Message)
	}
}

func TestSessionNotFound(t *testing.T) {
	db := newTestDB(t)
	storage := NewSessionStorage(db, arbor.NewLogger())

	_, err := storage.GetSession(context.Background(), "missing")
	if err != interfaces.ErrNotFound {
		t.Errorf("GetSession(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListSessionsOrder(t *testing.T) {
	db := newTestDB(t)
	storage := NewSessionStorage(db, arbor.NewLogger())

	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"sess-old", "sess-mid", "sess-new"} {
		session := &models.Session{
			ID:           id,
			CurrentState: models.StateIdle,
			StartedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := storage.SaveSession(ctx, session); err != nil {
			t.Fatalf("Failed to save session %s: %v", id, err)
		}
	}

	sessions, err := storage.ListSessions(ctx)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("ListSessions length = %d, want 3", len(sessions))
	}
	// Most recently started first
	if sessions[0].ID != "sess-new" {
		t.Errorf("first session = %s, want sess-new", sessions[0].ID)
	}
	if sessions[2].ID != "sess-old" {
		t.Errorf("last session = %s, want sess-old", sessions[2].ID)
	}
}

func TestDeleteSession(t *testing.T) {
	db := newTestDB(t)
	storage := NewSessionStorage(db, arbor.NewLogger())

	ctx := context.Background()
	session := &models.Session{ID: "sess-del", CurrentState: models.StateIdle, StartedAt: time.Now()}
	if err := storage.SaveSession(ctx, session); err != nil {
		t.Fatal(err)
	}

	if err := storage.DeleteSession(ctx, "sess-del"); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	if _, err := storage.GetSession(ctx, "sess-del"); err != interfaces.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is not an error
	if err := storage.DeleteSession(ctx, "sess-del"); err != nil {
		t.Errorf("second delete returned error: %v", err)
	}
}
