package store

import (
	"time"

	"github.com/hasad-erp/hasad/pkg/model"
)

// Viewer is who a memory query runs on behalf of. The zero Viewer is
// anonymous.
type Viewer struct {
	UserID string
	Admin  bool
}

// MemoryFilter narrows ListMemories. Visibility rules for Viewer are always
// applied.
type MemoryFilter struct {
	Viewer          Viewer
	Now             time.Time
	Type            model.MemoryType
	Category        string
	Tag             string
	EntityID        string
	OwnerID         string
	Text            string
	IncludeArchived bool
	Limit           int
	Offset          int
}

// MemoryStore abstracts the memory records themselves
type MemoryStore interface {
	CreateMemory(m *model.Memory) error

	// GetMemory returns the row without tags, entities or grants
	GetMemory(id string) (*model.Memory, error)

	UpdateMemory(m *model.Memory) error

	// DeleteMemory removes the memory along with its tag, entity and grant
	// links
	DeleteMemory(id string) error

	// ListMemories returns memories visible to the filter's viewer, most
	// important first, then most recently updated
	ListMemories(f MemoryFilter) ([]model.Memory, error)

	// RelatedMemories ranks visible memories by the number of tags and
	// entities they share with the given memory
	RelatedMemories(id string, f MemoryFilter) ([]model.Memory, error)

	// RecordAccess increments access_count and stamps last_accessed_at
	RecordAccess(id string, at time.Time) error

	MemoryStats() (*model.MemoryStats, error)
}

// TagStore abstracts tags and their links to memories
type TagStore interface {
	// EnsureTags returns the tags with the given normalized names, creating
	// missing ones
	EnsureTags(names []string) ([]model.Tag, error)

	// SetMemoryTags replaces the memory's tags
	SetMemoryTags(memoryID string, tagIDs []string) error

	AddMemoryTags(memoryID string, tagIDs []string) error
	RemoveMemoryTag(memoryID, tagName string) error
	MemoryTags(memoryID string) ([]model.Tag, error)

	// ListTags returns every tag with its usage count, most used first
	ListTags() ([]model.TagCount, error)
}

// EntityStore abstracts entities and their links to memories
type EntityStore interface {
	// EnsureEntity returns the entity with the same name and type, creating
	// it from e when missing
	EnsureEntity(e *model.Entity) (*model.Entity, error)
	GetEntity(id string) (*model.Entity, error)
	ListEntities(entityType model.EntityType, search string, limit int) ([]model.Entity, error)

	// LinkEntity inserts the link or updates its relevance
	LinkEntity(link model.MemoryEntity) error
	UnlinkEntity(memoryID, entityID string) error
	MemoryEntities(memoryID string) ([]model.LinkedEntity, error)
}

// GrantStore abstracts explicit per-user memory access
type GrantStore interface {
	// SaveGrant inserts the grant or replaces its permission
	SaveGrant(g *model.MemoryGrant) error
	GetGrant(memoryID, userID string) (*model.MemoryGrant, error)
	DeleteGrant(memoryID, userID string) error
	ListGrants(memoryID string) ([]model.MemoryGrant, error)
}

// MemoryAccessLogStore abstracts the memory access log
type MemoryAccessLogStore interface {
	CreateAccessLog(l *model.MemoryAccessLog) error

	// ListAccessLogs returns the newest entries for a memory first
	ListAccessLogs(memoryID string, limit int) ([]model.MemoryAccessLog, error)
}

// KnowledgeStore is everything the memory service needs
type KnowledgeStore interface {
	MemoryStore
	TagStore
	EntityStore
	GrantStore
	MemoryAccessLogStore
}
