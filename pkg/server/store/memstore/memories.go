package memstore

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// visible mirrors the SQL visibility predicate of the gorm store
func (s *Store) visible(m model.Memory, v store.Viewer, now time.Time) bool {
	if v.Admin || (v.UserID != "" && m.OwnerID == v.UserID) {
		return true
	}
	if m.Expired(now) {
		return false
	}
	switch m.AccessLevel {
	case model.AccessPublic:
		return true
	case model.AccessInternal:
		return v.UserID != ""
	case model.AccessRestricted:
		_, ok := s.grants[grantKey{m.ID, v.UserID}]
		return v.UserID != "" && ok
	}
	return false
}

func (s *Store) matches(m model.Memory, f store.MemoryFilter) bool {
	if !f.IncludeArchived && m.IsArchived {
		return false
	}
	if f.Type != "" && m.MemoryType != f.Type {
		return false
	}
	if f.Category != "" && !strings.EqualFold(m.Category, f.Category) {
		return false
	}
	if f.OwnerID != "" && m.OwnerID != f.OwnerID {
		return false
	}
	if f.Tag != "" {
		found := false
		for key := range s.memoryTags {
			if key.memoryID == m.ID && s.tags[key.tagID].Name == model.NormalizeTag(f.Tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.EntityID != "" {
		if _, ok := s.links[memoryEntityKey{m.ID, f.EntityID}]; !ok {
			return false
		}
	}
	if f.Text != "" {
		q := strings.ToLower(f.Text)
		hay := strings.ToLower(m.Title + "\n" + m.Content + "\n" + m.Summary)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return s.visible(m, f.Viewer, f.Now)
}

func byImportance(ms []model.Memory) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Importance != ms[j].Importance {
			return ms[i].Importance > ms[j].Importance
		}
		if !ms[i].UpdatedAt.Equal(ms[j].UpdatedAt) {
			return ms[i].UpdatedAt.After(ms[j].UpdatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

func bare(m model.Memory) model.Memory {
	m.Tags, m.Entities, m.Grants = nil, nil, nil
	return m
}

func (s *Store) CreateMemory(m *model.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[m.ID]; ok {
		return store.ErrConflict
	}
	s.memories[m.ID] = bare(*m)
	return nil
}

func (s *Store) GetMemory(id string) (*model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) UpdateMemory(m *model.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[m.ID]; !ok {
		return store.ErrNotFound
	}
	s.memories[m.ID] = bare(*m)
	return nil
}

func (s *Store) DeleteMemory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.memories, id)
	for key := range s.memoryTags {
		if key.memoryID == id {
			delete(s.memoryTags, key)
		}
	}
	for key := range s.links {
		if key.memoryID == id {
			delete(s.links, key)
		}
	}
	for key := range s.grants {
		if key.memoryID == id {
			delete(s.grants, key)
		}
	}
	return nil
}

func (s *Store) ListMemories(f store.MemoryFilter) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Memory{}
	for _, m := range s.memories {
		if s.matches(m, f) {
			out = append(out, m)
		}
	}
	byImportance(out)
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) RelatedMemories(id string, f store.MemoryFilter) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.memories[id]; !ok {
		return nil, store.ErrNotFound
	}

	tags := map[string]bool{}
	for key := range s.memoryTags {
		if key.memoryID == id {
			tags[key.tagID] = true
		}
	}
	entities := map[string]bool{}
	for key := range s.links {
		if key.memoryID == id {
			entities[key.entityID] = true
		}
	}

	shared := map[string]int{}
	for key := range s.memoryTags {
		if key.memoryID != id && tags[key.tagID] {
			shared[key.memoryID]++
		}
	}
	for key := range s.links {
		if key.memoryID != id && entities[key.entityID] {
			shared[key.memoryID]++
		}
	}

	out := []model.Memory{}
	for mid := range shared {
		if m, ok := s.memories[mid]; ok && s.matches(m, f) {
			out = append(out, m)
		}
	}
	byImportance(out)
	sort.SliceStable(out, func(i, j int) bool { return shared[out[i].ID] > shared[out[j].ID] })
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) RecordAccess(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return store.ErrNotFound
	}
	m.AccessCount++
	m.LastAccessedAt = &at
	s.memories[id] = m
	return nil
}

func (s *Store) MemoryStats() (*model.MemoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.MemoryStats{
		ByType:        map[model.MemoryType]int64{},
		ByAccessLevel: map[model.AccessLevel]int64{},
	}
	for _, m := range s.memories {
		stats.Total++
		if m.IsArchived {
			stats.Archived++
		}
		stats.ByType[m.MemoryType]++
		stats.ByAccessLevel[m.AccessLevel]++
	}
	return stats, nil
}

func (s *Store) EnsureTags(names []string) ([]model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Tag, 0, len(names))
	for _, name := range model.NormalizeTags(names) {
		var tag *model.Tag
		for _, t := range s.tags {
			if t.Name == name {
				t := t
				tag = &t
				break
			}
		}
		if tag == nil {
			tag = &model.Tag{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
			s.tags[tag.ID] = *tag
		}
		out = append(out, *tag)
	}
	return out, nil
}

func (s *Store) SetMemoryTags(memoryID string, tagIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.memoryTags {
		if key.memoryID == memoryID {
			delete(s.memoryTags, key)
		}
	}
	for _, id := range tagIDs {
		s.memoryTags[memoryTagKey{memoryID, id}] = struct{}{}
	}
	return nil
}

func (s *Store) AddMemoryTags(memoryID string, tagIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range tagIDs {
		s.memoryTags[memoryTagKey{memoryID, id}] = struct{}{}
	}
	return nil
}

func (s *Store) RemoveMemoryTag(memoryID, tagName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := model.NormalizeTag(tagName)
	for key := range s.memoryTags {
		if key.memoryID == memoryID && s.tags[key.tagID].Name == name {
			delete(s.memoryTags, key)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) MemoryTags(memoryID string) ([]model.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Tag{}
	for key := range s.memoryTags {
		if key.memoryID == memoryID {
			out = append(out, s.tags[key.tagID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListTags() ([]model.TagCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int64{}
	for key := range s.memoryTags {
		counts[key.tagID]++
	}
	out := make([]model.TagCount, 0, len(s.tags))
	for id, t := range s.tags {
		out = append(out, model.TagCount{Tag: t, Count: counts[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) EnsureEntity(e *model.Entity) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entities {
		if existing.EntityType == e.EntityType && strings.EqualFold(existing.Name, e.Name) {
			return &existing, nil
		}
	}
	created := *e
	s.entities[created.ID] = created
	return &created, nil
}

func (s *Store) GetEntity(id string) (*model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) ListEntities(entityType model.EntityType, search string, limit int) ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(search)
	out := []model.Entity{}
	for _, e := range s.entities {
		if entityType != "" && e.EntityType != entityType {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(e.Name), q) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, limit, 0), nil
}

func (s *Store) LinkEntity(link model.MemoryEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[link.EntityID]; !ok {
		return store.ErrNotFound
	}
	s.links[memoryEntityKey{link.MemoryID, link.EntityID}] = link.Relevance
	return nil
}

func (s *Store) UnlinkEntity(memoryID, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryEntityKey{memoryID, entityID}
	if _, ok := s.links[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.links, key)
	return nil
}

func (s *Store) MemoryEntities(memoryID string) ([]model.LinkedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.LinkedEntity{}
	for key, relevance := range s.links {
		if key.memoryID == memoryID {
			out = append(out, model.LinkedEntity{Entity: s.entities[key.entityID], Relevance: relevance})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) SaveGrant(g *model.MemoryGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey{g.MemoryID, g.UserID}
	if existing, ok := s.grants[key]; ok {
		existing.Permission = g.Permission
		existing.GrantedBy = g.GrantedBy
		s.grants[key] = existing
		return nil
	}
	s.grants[key] = *g
	return nil
}

func (s *Store) GetGrant(memoryID, userID string) (*model.MemoryGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.grants[grantKey{memoryID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &g, nil
}

func (s *Store) DeleteGrant(memoryID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey{memoryID, userID}
	if _, ok := s.grants[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.grants, key)
	return nil
}

func (s *Store) ListGrants(memoryID string) ([]model.MemoryGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.MemoryGrant{}
	for key, g := range s.grants {
		if key.memoryID == memoryID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateAccessLog(l *model.MemoryAccessLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessLogs = append(s.accessLogs, *l)
	return nil
}

func (s *Store) ListAccessLogs(memoryID string, limit int) ([]model.MemoryAccessLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.MemoryAccessLog{}
	for i := len(s.accessLogs) - 1; i >= 0; i-- {
		l := s.accessLogs[i]
		if l.MemoryID != nil && *l.MemoryID == memoryID {
			out = append(out, l)
		}
	}
	return page(out, limit, 0), nil
}
