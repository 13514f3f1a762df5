package gorm

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure MemoryStore implements store.MemoryStore
var _ store.MemoryStore = (*MemoryStore)(nil)

// MemoryStore implements store.MemoryStore using GORM
type MemoryStore struct {
	db *gorm.DB
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore(db *gorm.DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// visibilityClause is the SQL rendition of the memory access rules for
// listing. Owners and admins see expired memories; nobody else does.
func visibilityClause(v store.Viewer, now time.Time) (string, []interface{}) {
	if v.Admin {
		return "TRUE", nil
	}
	if v.UserID == "" {
		return "(m.access_level = 'public' AND (m.expires_at IS NULL OR m.expires_at > ?))", []interface{}{now}
	}
	return `(m.owner_id::text = ? OR ((m.expires_at IS NULL OR m.expires_at > ?) AND (
		m.access_level IN ('public', 'internal')
		OR (m.access_level = 'restricted' AND EXISTS (
			SELECT 1 FROM memory_grants g WHERE g.memory_id = m.id AND g.user_id::text = ?)))))`,
		[]interface{}{v.UserID, now, v.UserID}
}

// escapeLike quotes the LIKE metacharacters in s
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func filterClause(f store.MemoryFilter) (string, []interface{}) {
	cond, args := visibilityClause(f.Viewer, f.Now)
	conds := []string{cond}

	if !f.IncludeArchived {
		conds = append(conds, "NOT m.is_archived")
	}
	if f.Type != "" {
		conds = append(conds, "m.memory_type = ?")
		args = append(args, f.Type)
	}
	if f.Category != "" {
		conds = append(conds, "lower(m.category) = lower(?)")
		args = append(args, f.Category)
	}
	if f.OwnerID != "" {
		conds = append(conds, "m.owner_id::text = ?")
		args = append(args, f.OwnerID)
	}
	if f.Tag != "" {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM memory_tags mt JOIN tags t ON t.id = mt.tag_id
			WHERE mt.memory_id = m.id AND t.name = ?)`)
		args = append(args, model.NormalizeTag(f.Tag))
	}
	if f.EntityID != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM memory_entities me WHERE me.memory_id = m.id AND me.entity_id::text = ?)")
		args = append(args, f.EntityID)
	}
	if f.Text != "" {
		pattern := "%" + escapeLike(f.Text) + "%"
		conds = append(conds, "(m.title ILIKE ? OR m.content ILIKE ? OR m.summary ILIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	return strings.Join(conds, " AND "), args
}

func (s *MemoryStore) CreateMemory(m *model.Memory) error {
	return translate(s.db.Create(m).Error)
}

func (s *MemoryStore) GetMemory(id string) (*model.Memory, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var m model.Memory
	if err := s.db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *MemoryStore) UpdateMemory(m *model.Memory) error {
	if !validID(m.ID) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(`
		UPDATE memories SET
			title = ?, content = ?, summary = ?, memory_type = ?, category = ?, source = ?,
			importance = ?, confidence = ?, access_level = ?, owner_id = ?, is_archived = ?,
			expires_at = ?, updated_at = ?
		WHERE id = ?`,
		m.Title, m.Content, m.Summary, m.MemoryType, m.Category, m.Source,
		m.Importance, m.Confidence, m.AccessLevel, m.OwnerID, m.IsArchived,
		m.ExpiresAt, m.UpdatedAt,
		m.ID,
	))
}

// DeleteMemory relies on ON DELETE CASCADE for tag, entity and grant links.
func (s *MemoryStore) DeleteMemory(id string) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(`DELETE FROM memories WHERE id = ?`, id))
}

func (s *MemoryStore) ListMemories(f store.MemoryFilter) ([]model.Memory, error) {
	where, args := filterClause(f)
	limit, limitArgs := pageClause(f.Limit, f.Offset)

	var memories []model.Memory
	err := s.db.Raw(
		"SELECT m.* FROM memories m WHERE "+where+
			" ORDER BY m.importance DESC, m.updated_at DESC, m.id"+limit,
		append(args, limitArgs...)...,
	).Scan(&memories).Error
	return memories, err
}

func (s *MemoryStore) RelatedMemories(id string, f store.MemoryFilter) ([]model.Memory, error) {
	if _, err := s.GetMemory(id); err != nil {
		return nil, err
	}
	where, args := filterClause(f)
	limit, limitArgs := pageClause(f.Limit, f.Offset)

	query := `
		WITH shared AS (
			SELECT mt.memory_id AS id, count(*) AS n
			FROM memory_tags mt
			WHERE mt.tag_id IN (SELECT tag_id FROM memory_tags WHERE memory_id = ?) AND mt.memory_id <> ?
			GROUP BY mt.memory_id
			UNION ALL
			SELECT me.memory_id AS id, count(*) AS n
			FROM memory_entities me
			WHERE me.entity_id IN (SELECT entity_id FROM memory_entities WHERE memory_id = ?) AND me.memory_id <> ?
			GROUP BY me.memory_id
		), ranked AS (
			SELECT id, sum(n) AS n FROM shared GROUP BY id
		)
		SELECT m.* FROM memories m JOIN ranked r ON r.id = m.id
		WHERE ` + where + `
		ORDER BY r.n DESC, m.importance DESC, m.updated_at DESC, m.id` + limit

	queryArgs := append([]interface{}{id, id, id, id}, args...)
	queryArgs = append(queryArgs, limitArgs...)

	var memories []model.Memory
	err := s.db.Raw(query, queryArgs...).Scan(&memories).Error
	return memories, err
}

func (s *MemoryStore) RecordAccess(id string, at time.Time) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(
		`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		at, id,
	))
}

func (s *MemoryStore) MemoryStats() (*model.MemoryStats, error) {
	stats := &model.MemoryStats{
		ByType:        map[model.MemoryType]int64{},
		ByAccessLevel: map[model.AccessLevel]int64{},
	}

	var totals struct {
		Total    int64 `gorm:"column:total"`
		Archived int64 `gorm:"column:archived"`
	}
	if err := s.db.Raw(`SELECT count(*) AS total, count(*) FILTER (WHERE is_archived) AS archived FROM memories`).
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	stats.Total, stats.Archived = totals.Total, totals.Archived

	var byType []struct {
		Key   string `gorm:"column:key"`
		Count int64  `gorm:"column:count"`
	}
	if err := s.db.Raw(`SELECT memory_type AS key, count(*) AS count FROM memories GROUP BY memory_type`).
		Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, row := range byType {
		stats.ByType[model.MemoryType(row.Key)] = row.Count
	}

	var byLevel []struct {
		Key   string `gorm:"column:key"`
		Count int64  `gorm:"column:count"`
	}
	if err := s.db.Raw(`SELECT access_level AS key, count(*) AS count FROM memories GROUP BY access_level`).
		Scan(&byLevel).Error; err != nil {
		return nil, err
	}
	for _, row := range byLevel {
		stats.ByAccessLevel[model.AccessLevel(row.Key)] = row.Count
	}
	return stats, nil
}
