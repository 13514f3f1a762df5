package model

import (
	"strings"
	"time"
)

// Tag is a normalized label attached to memories
type Tag struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"-"`
}

func (Tag) TableName() string {
	return "tags"
}

// MemoryTag is the join row between memories and tags
type MemoryTag struct {
	MemoryID string `gorm:"column:memory_id;primaryKey"`
	TagID    string `gorm:"column:tag_id;primaryKey"`
}

func (MemoryTag) TableName() string {
	return "memory_tags"
}

// TagCount is a tag together with the number of memories using it
type TagCount struct {
	Tag
	Count int64 `gorm:"column:count" json:"count"`
}

// NormalizeTag trims, lowercases and joins inner whitespace with dashes.
// Arabic names pass through unchanged apart from the whitespace handling.
func NormalizeTag(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// NormalizeTags normalizes names and drops empties and duplicates,
// keeping the first occurrence order
func NormalizeTags(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = NormalizeTag(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
