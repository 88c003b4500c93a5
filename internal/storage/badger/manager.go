package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	session    interfaces.SessionStorage
	draft      interfaces.DraftStorage
	credential interfaces.CredentialStorage
	knowledge  interfaces.KnowledgeStorage
	kv         interfaces.KeyValueStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		session:    NewSessionStorage(db, logger),
		draft:      NewDraftStorage(db, logger),
		credential: NewCredentialStorage(db, logger),
		knowledge:  NewKnowledgeStorage(db, logger),
		kv:         NewKVStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// SessionStorage returns the Session storage interface
func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.session
}

// DraftStorage returns the Draft storage interface
func (m *Manager) DraftStorage() interfaces.DraftStorage {
	return m.draft
}

// CredentialStorage returns the Credential storage interface
func (m *Manager) CredentialStorage() interfaces.CredentialStorage {
	return m.credential
}

// KnowledgeStorage returns the Knowledge storage interface
func (m *Manager) KnowledgeStorage() interfaces.KnowledgeStorage {
	return m.knowledge
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
