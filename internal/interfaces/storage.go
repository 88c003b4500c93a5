package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/audiens/internal/models"
)

// ErrKeyNotFound is returned when a key/value pair does not exist
var ErrKeyNotFound = errors.New("key not found")

// ErrNotFound is returned by typed stores when a record does not exist
var ErrNotFound = errors.New("not found")

// KeyValuePair represents a stored key/value setting
type KeyValuePair struct {
	Key         string    `json:"key" badgerhold:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage stores case-insensitive key/value settings
// (IMAP/SMTP configuration, API keys, voice endpoints)
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value, description string) error
	Delete(ctx context.Context, key string) error
	GetAll(ctx context.Context) (map[string]string, error)
	List(ctx context.Context) ([]KeyValuePair, error)
}

// SessionStorage persists workflow sessions and their event history
type SessionStorage interface {
	SaveSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context) ([]*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// DraftStorage persists reply drafts through the review gate
type DraftStorage interface {
	SaveDraft(ctx context.Context, draft *models.ReplyDraft) error
	GetDraft(ctx context.Context, id string) (*models.ReplyDraft, error)
	GetDraftByEmail(ctx context.Context, emailID string) (*models.ReplyDraft, error)
	ListDrafts(ctx context.Context, state models.DraftState) ([]*models.ReplyDraft, error)
	DeleteDraft(ctx context.Context, id string) error
}

// CredentialStorage persists CRM login credentials
type CredentialStorage interface {
	StoreCredentials(ctx context.Context, creds *models.CRMCredentials) error
	GetCredentials(ctx context.Context, id string) (*models.CRMCredentials, error)
	GetDefaultCredentials(ctx context.Context) (*models.CRMCredentials, error)
	ListCredentials(ctx context.Context) ([]*models.CRMCredentials, error)
	DeleteCredentials(ctx context.Context, id string) error
}

// KnowledgeStorage persists and searches the enrollment FAQ corpus
type KnowledgeStorage interface {
	SaveArticle(ctx context.Context, article *models.KnowledgeArticle) error
	GetArticle(ctx context.Context, id string) (*models.KnowledgeArticle, error)
	ListArticles(ctx context.Context) ([]*models.KnowledgeArticle, error)
	SearchArticles(ctx context.Context, query string, limit int) ([]*models.KnowledgeArticle, error)
	DeleteArticle(ctx context.Context, id string) error
}

// StorageManager provides access to all typed stores
type StorageManager interface {
	SessionStorage() SessionStorage
	DraftStorage() DraftStorage
	CredentialStorage() CredentialStorage
	KnowledgeStorage() KnowledgeStorage
	KeyValueStorage() KeyValueStorage

	// LoadEnvFile loads KEY=value pairs from a .env file into the KV store
	LoadEnvFile(ctx context.Context, filePath string) error

	// LoadKnowledgeFromFiles loads FAQ articles from a directory of TOML files
	LoadKnowledgeFromFiles(ctx context.Context, dirPath string) error

	Close() error
}
