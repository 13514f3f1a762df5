package model

import "time"

// EntityType classifies the things memories can be about
type EntityType string

const (
	EntityCrop         EntityType = "crop"
	EntityPest         EntityType = "pest"
	EntityDisease      EntityType = "disease"
	EntityLocation     EntityType = "location"
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityProduct      EntityType = "product"
	EntityOther        EntityType = "other"
)

var entityTypes = map[EntityType]bool{
	EntityCrop: true, EntityPest: true, EntityDisease: true, EntityLocation: true,
	EntityPerson: true, EntityOrganization: true, EntityProduct: true, EntityOther: true,
}

// Valid reports whether t is a known entity type
func (t EntityType) Valid() bool {
	return entityTypes[t]
}

// Entity is a named thing, unique by name and type
type Entity struct {
	ID          string     `gorm:"column:id;primaryKey" json:"id"`
	Name        string     `gorm:"column:name" json:"name"`
	EntityType  EntityType `gorm:"column:entity_type" json:"entity_type"`
	Description string     `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (Entity) TableName() string {
	return "entities"
}

// MemoryEntity links an entity to a memory with a relevance score in [0,1]
type MemoryEntity struct {
	MemoryID  string  `gorm:"column:memory_id;primaryKey"`
	EntityID  string  `gorm:"column:entity_id;primaryKey"`
	Relevance float64 `gorm:"column:relevance"`
}

func (MemoryEntity) TableName() string {
	return "memory_entities"
}

// LinkedEntity is an entity as seen from a memory
type LinkedEntity struct {
	Entity
	Relevance float64 `gorm:"column:relevance" json:"relevance"`
}
