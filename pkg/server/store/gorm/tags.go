package gorm

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure TagStore implements store.TagStore
var _ store.TagStore = (*TagStore)(nil)

// TagStore implements store.TagStore using GORM
type TagStore struct {
	db *gorm.DB
}

// NewTagStore creates a new TagStore
func NewTagStore(db *gorm.DB) *TagStore {
	return &TagStore{db: db}
}

func (s *TagStore) EnsureTags(names []string) ([]model.Tag, error) {
	names = model.NormalizeTags(names)
	tags := make([]model.Tag, 0, len(names))
	for _, name := range names {
		var tag model.Tag
		err := s.db.Raw(`
			INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id, name, created_at`,
			uuid.NewString(), name, time.Now().UTC(),
		).Scan(&tag).Error
		if err != nil {
			return nil, translate(err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *TagStore) SetMemoryTags(memoryID string, tagIDs []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM memory_tags WHERE memory_id = ?`, memoryID).Error; err != nil {
			return err
		}
		return insertMemoryTags(tx, memoryID, tagIDs)
	})
}

func (s *TagStore) AddMemoryTags(memoryID string, tagIDs []string) error {
	return insertMemoryTags(s.db, memoryID, tagIDs)
}

func insertMemoryTags(db *gorm.DB, memoryID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		err := db.Exec(
			`INSERT INTO memory_tags (memory_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			memoryID, tagID,
		).Error
		if err != nil {
			return translate(err)
		}
	}
	return nil
}

func (s *TagStore) RemoveMemoryTag(memoryID, tagName string) error {
	if !validID(memoryID) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(`
		DELETE FROM memory_tags
		WHERE memory_id = ? AND tag_id IN (SELECT id FROM tags WHERE name = ?)`,
		memoryID, model.NormalizeTag(tagName),
	))
}

func (s *TagStore) MemoryTags(memoryID string) ([]model.Tag, error) {
	if !validID(memoryID) {
		return nil, nil
	}
	var tags []model.Tag
	err := s.db.Raw(`
		SELECT t.* FROM tags t JOIN memory_tags mt ON mt.tag_id = t.id
		WHERE mt.memory_id = ?
		ORDER BY t.name`,
		memoryID,
	).Scan(&tags).Error
	return tags, err
}

func (s *TagStore) ListTags() ([]model.TagCount, error) {
	var counts []model.TagCount
	err := s.db.Raw(`
		SELECT t.id, t.name, t.created_at, count(mt.memory_id) AS count
		FROM tags t LEFT JOIN memory_tags mt ON mt.tag_id = t.id
		GROUP BY t.id, t.name, t.created_at
		ORDER BY count DESC, t.name`,
	).Scan(&counts).Error
	return counts, err
}
