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

// CredentialStorage implements the CredentialStorage interface for Badger
type CredentialStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCredentialStorage creates a new CredentialStorage instance
func NewCredentialStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CredentialStorage {
	return &CredentialStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CredentialStorage) StoreCredentials(ctx context.Context, creds *models.CRMCredentials) error {
	if creds.ID == "" {
		return fmt.Errorf("credentials ID is required")
	}

	now := time.Now().Unix()
	if creds.CreatedAt == 0 {
		creds.CreatedAt = now
	}
	creds.UpdatedAt = now

	if err := s.db.Store().Upsert(creds.ID, creds); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

func (s *CredentialStorage) GetCredentials(ctx context.Context, id string) (*models.CRMCredentials, error) {
	var creds models.CRMCredentials
	if err := s.db.Store().Get(id, &creds); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &creds, nil
}

// GetDefaultCredentials returns the single stored credential set. When
// more than one exists the most recently updated wins.
func (s *CredentialStorage) GetDefaultCredentials(ctx context.Context) (*models.CRMCredentials, error) {
	var creds []models.CRMCredentials
	query := badgerhold.Where("ID").Ne("").SortBy("UpdatedAt").Reverse()
	if err := s.db.Store().Find(&creds, query); err != nil {
		return nil, fmt.Errorf("failed to find credentials: %w", err)
	}
	if len(creds) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &creds[0], nil
}

func (s *CredentialStorage) ListCredentials(ctx context.Context) ([]*models.CRMCredentials, error) {
	var creds []models.CRMCredentials
	if err := s.db.Store().Find(&creds, nil); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	result := make([]*models.CRMCredentials, len(creds))
	for i := range creds {
		result[i] = &creds[i]
	}
	return result, nil
}

func (s *CredentialStorage) DeleteCredentials(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.CRMCredentials{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
