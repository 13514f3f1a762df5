package gorm

import (
	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure KnowledgeStore implements store.KnowledgeStore
var _ store.KnowledgeStore = (*KnowledgeStore)(nil)

// KnowledgeStore bundles the stores behind the memory service
type KnowledgeStore struct {
	*MemoryStore
	*TagStore
	*EntityStore
	*GrantStore
	*AccessLogStore
}

// NewKnowledgeStore creates a new KnowledgeStore
func NewKnowledgeStore(db *gorm.DB) *KnowledgeStore {
	return &KnowledgeStore{
		MemoryStore:    NewMemoryStore(db),
		TagStore:       NewTagStore(db),
		EntityStore:    NewEntityStore(db),
		GrantStore:     NewGrantStore(db),
		AccessLogStore: NewAccessLogStore(db),
	}
}
