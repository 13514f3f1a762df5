package model

import "time"

// MemoryType classifies what kind of knowledge a memory holds
type MemoryType string

const (
	MemoryFact        MemoryType = "fact"
	MemoryObservation MemoryType = "observation"
	MemoryProcedure   MemoryType = "procedure"
	MemoryExperience  MemoryType = "experience"
	MemoryInsight     MemoryType = "insight"
)

// MemoryTypes lists every valid memory type
var MemoryTypes = []MemoryType{MemoryFact, MemoryObservation, MemoryProcedure, MemoryExperience, MemoryInsight}

// Valid reports whether t is a known memory type
func (t MemoryType) Valid() bool {
	for _, v := range MemoryTypes {
		if v == t {
			return true
		}
	}
	return false
}

// AccessLevel controls who can read a memory
type AccessLevel string

const (
	AccessPublic     AccessLevel = "public"
	AccessInternal   AccessLevel = "internal"
	AccessPrivate    AccessLevel = "private"
	AccessRestricted AccessLevel = "restricted"
)

// AccessLevels lists every valid access level
var AccessLevels = []AccessLevel{AccessPublic, AccessInternal, AccessPrivate, AccessRestricted}

// Valid reports whether l is a known access level
func (l AccessLevel) Valid() bool {
	for _, v := range AccessLevels {
		if v == l {
			return true
		}
	}
	return false
}

// Memory is one entry of the central knowledge store. Content is Markdown.
type Memory struct {
	ID             string      `gorm:"column:id;primaryKey" json:"id"`
	Title          string      `gorm:"column:title" json:"title"`
	Content        string      `gorm:"column:content" json:"content"`
	Summary        string      `gorm:"column:summary" json:"summary,omitempty"`
	MemoryType     MemoryType  `gorm:"column:memory_type" json:"memory_type"`
	Category       string      `gorm:"column:category" json:"category,omitempty"`
	Source         string      `gorm:"column:source" json:"source,omitempty"`
	Importance     float64     `gorm:"column:importance" json:"importance"`
	Confidence     float64     `gorm:"column:confidence" json:"confidence"`
	AccessLevel    AccessLevel `gorm:"column:access_level" json:"access_level"`
	OwnerID        string      `gorm:"column:owner_id" json:"owner_id"`
	IsArchived     bool        `gorm:"column:is_archived" json:"is_archived"`
	AccessCount    int64       `gorm:"column:access_count" json:"access_count"`
	LastAccessedAt *time.Time  `gorm:"column:last_accessed_at" json:"last_accessed_at,omitempty"`
	ExpiresAt      *time.Time  `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"column:updated_at" json:"updated_at"`

	Tags     []Tag          `gorm:"-" json:"tags,omitempty"`
	Entities []LinkedEntity `gorm:"-" json:"entities,omitempty"`
	Grants   []MemoryGrant  `gorm:"-" json:"grants,omitempty"`
}

func (Memory) TableName() string {
	return "memories"
}

// Expired reports whether the memory has passed its expiry
func (m *Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// TagNames returns the names of the memory's tags
func (m *Memory) TagNames() []string {
	names := make([]string, 0, len(m.Tags))
	for _, t := range m.Tags {
		names = append(names, t.Name)
	}
	return names
}

// MemoryStats summarises the knowledge store
type MemoryStats struct {
	Total         int64                 `json:"total"`
	Archived      int64                 `json:"archived"`
	ByType        map[MemoryType]int64  `json:"by_type"`
	ByAccessLevel map[AccessLevel]int64 `json:"by_access_level"`
}
