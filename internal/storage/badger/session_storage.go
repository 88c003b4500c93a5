package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

// SessionStorage implements the SessionStorage interface for Badger
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SessionStorage) SaveSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Store().Get(id, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// ListSessions returns all sessions, most recently started first
func (s *SessionStorage) ListSessions(ctx context.Context) ([]*models.Session, error) {
	var sessions []models.Session
	if err := s.db.Store().Find(&sessions, nil); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	result := make([]*models.Session, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

func (s *SessionStorage) DeleteSession(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Session{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
