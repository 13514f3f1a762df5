package gorm

import (
	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure EntityStore implements store.EntityStore
var _ store.EntityStore = (*EntityStore)(nil)

// EntityStore implements store.EntityStore using GORM
type EntityStore struct {
	db *gorm.DB
}

// NewEntityStore creates a new EntityStore
func NewEntityStore(db *gorm.DB) *EntityStore {
	return &EntityStore{db: db}
}

func (s *EntityStore) EnsureEntity(e *model.Entity) (*model.Entity, error) {
	var existing model.Entity
	err := s.db.Where("lower(name) = lower(?) AND entity_type = ?", e.Name, e.EntityType).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	created := *e
	if err := s.db.Create(&created).Error; err != nil {
		if translate(err) == store.ErrConflict {
			// Lost a race with another writer; theirs wins.
			if err := s.db.Where("lower(name) = lower(?) AND entity_type = ?", e.Name, e.EntityType).
				First(&existing).Error; err != nil {
				return nil, translate(err)
			}
			return &existing, nil
		}
		return nil, translate(err)
	}
	return &created, nil
}

func (s *EntityStore) GetEntity(id string) (*model.Entity, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var e model.Entity
	if err := s.db.Where("id = ?", id).First(&e).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *EntityStore) ListEntities(entityType model.EntityType, search string, limit int) ([]model.Entity, error) {
	tx := s.db.Order("name")
	if entityType != "" {
		tx = tx.Where("entity_type = ?", entityType)
	}
	if search != "" {
		tx = tx.Where("name ILIKE ?", "%"+escapeLike(search)+"%")
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var entities []model.Entity
	if err := tx.Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

func (s *EntityStore) LinkEntity(link model.MemoryEntity) error {
	return translate(s.db.Exec(`
		INSERT INTO memory_entities (memory_id, entity_id, relevance) VALUES (?, ?, ?)
		ON CONFLICT (memory_id, entity_id) DO UPDATE SET relevance = EXCLUDED.relevance`,
		link.MemoryID, link.EntityID, link.Relevance,
	).Error)
}

func (s *EntityStore) UnlinkEntity(memoryID, entityID string) error {
	if !validID(memoryID) || !validID(entityID) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(
		`DELETE FROM memory_entities WHERE memory_id = ? AND entity_id = ?`,
		memoryID, entityID,
	))
}

func (s *EntityStore) MemoryEntities(memoryID string) ([]model.LinkedEntity, error) {
	if !validID(memoryID) {
		return nil, nil
	}
	var linked []model.LinkedEntity
	err := s.db.Raw(`
		SELECT e.*, me.relevance FROM entities e JOIN memory_entities me ON me.entity_id = e.id
		WHERE me.memory_id = ?
		ORDER BY me.relevance DESC, e.name`,
		memoryID,
	).Scan(&linked).Error
	return linked, err
}
