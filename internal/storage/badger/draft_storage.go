package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/audiens/internal/interfaces"
	"github.com/ternarybob/audiens/internal/models"
)

// DraftStorage implements the DraftStorage interface for Badger
type DraftStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDraftStorage creates a new DraftStorage instance
func NewDraftStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DraftStorage {
	return &DraftStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DraftStorage) SaveDraft(ctx context.Context, draft *models.ReplyDraft) error {
	if draft.ID == "" {
		return fmt.Errorf("draft ID is required")
	}

	now := time.Now()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	if err := s.db.Store().Upsert(draft.ID, draft); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (s *DraftStorage) GetDraft(ctx context.Context, id string) (*models.ReplyDraft, error) {
	var draft models.ReplyDraft
	if err := s.db.Store().Get(id, &draft); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return &draft, nil
}

// GetDraftByEmail returns the most recent draft staged for an email
func (s *DraftStorage) GetDraftByEmail(ctx context.Context, emailID string) (*models.ReplyDraft, error) {
	var drafts []models.ReplyDraft
	query := badgerhold.Where("EmailID").Eq(emailID).Index("EmailID").SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&drafts, query); err != nil {
		return nil, fmt.Errorf("failed to find draft by email: %w", err)
	}
	if len(drafts) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &drafts[0], nil
}

// ListDrafts returns drafts in a given state, or all drafts when state is empty
func (s *DraftStorage) ListDrafts(ctx context.Context, state models.DraftState) ([]*models.ReplyDraft, error) {
	var drafts []models.ReplyDraft
	var query *badgerhold.Query
	if state != "" {
		query = badgerhold.Where("State").Eq(state).SortBy("CreatedAt").Reverse()
	} else {
		query = badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	}
	if err := s.db.Store().Find(&drafts, query); err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	result := make([]*models.ReplyDraft, len(drafts))
	for i := range drafts {
		result[i] = &drafts[i]
	}
	return result, nil
}

func (s *DraftStorage) DeleteDraft(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.ReplyDraft{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}
