package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// AddTags attaches tags to a memory, creating any that do not exist
func (s *Service) AddTags(ctx context.Context, id *identity.Identity, memoryID string, names []string) ([]model.Tag, error) {
	names = model.NormalizeTags(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no tags given", ErrInvalidInput)
	}
	m, err := s.authorize(id, memoryID, model.ActionUpdate)
	if err != nil {
		return nil, err
	}
	tags, err := s.store.EnsureTags(names)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddMemoryTags(m.ID, tagIDs(tags)); err != nil {
		return nil, err
	}
	all, err := s.store.MemoryTags(m.ID)
	if err != nil {
		return nil, err
	}
	m.Tags = all
	s.reindex(m)
	return all, nil
}

// RemoveTag detaches a tag from a memory
func (s *Service) RemoveTag(ctx context.Context, id *identity.Identity, memoryID, name string) error {
	m, err := s.authorize(id, memoryID, model.ActionUpdate)
	if err != nil {
		return err
	}
	if err := s.store.RemoveMemoryTag(m.ID, model.NormalizeTag(name)); err != nil {
		return err
	}
	tags, err := s.store.MemoryTags(m.ID)
	if err != nil {
		return err
	}
	m.Tags = tags
	s.reindex(m)
	return nil
}

// ListTags returns every tag with its usage count
func (s *Service) ListTags(ctx context.Context) ([]model.TagCount, error) {
	return s.store.ListTags()
}

// EntityInput is a new entity
type EntityInput struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Type        model.EntityType `json:"entity_type" validate:"required"`
	Description string           `json:"description,omitempty" validate:"max=2000"`
}

// CreateEntity returns the entity with the same name and type, creating it
// when missing
func (s *Service) CreateEntity(ctx context.Context, id *identity.Identity, in EntityInput) (*model.Entity, error) {
	if !canCreate(id) {
		return nil, ErrForbidden
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, in.Type)
	}
	return s.store.EnsureEntity(&model.Entity{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		EntityType:  in.Type,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now(),
	})
}

// ListEntities searches entities by type and name
func (s *Service) ListEntities(ctx context.Context, entityType model.EntityType, search string, limit int) ([]model.Entity, error) {
	if entityType != "" && !entityType.Valid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, entityType)
	}
	return s.store.ListEntities(entityType, strings.TrimSpace(search), s.clampLimit(limit))
}

// LinkEntity links an entity to a memory, creating the entity if needed.
// Linking again updates the relevance.
func (s *Service) LinkEntity(ctx context.Context, id *identity.Identity, memoryID string, ref EntityRef) (*model.LinkedEntity, error) {
	if err := s.check(ref); err != nil {
		return nil, err
	}
	if !ref.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, ref.Type)
	}
	m, err := s.authorize(id, memoryID, model.ActionUpdate)
	if err != nil {
		return nil, err
	}
	return s.linkEntity(m.ID, ref)
}

func (s *Service) linkEntity(memoryID string, ref EntityRef) (*model.LinkedEntity, error) {
	entity, err := s.store.EnsureEntity(&model.Entity{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(ref.Name),
		EntityType: ref.Type,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}
	relevance := valueOr(ref.Relevance, 1)
	if err := s.store.LinkEntity(model.MemoryEntity{MemoryID: memoryID, EntityID: entity.ID, Relevance: relevance}); err != nil {
		return nil, fmt.Errorf("failed to link entity: %w", err)
	}
	return &model.LinkedEntity{Entity: *entity, Relevance: relevance}, nil
}

// UnlinkEntity removes an entity from a memory. The entity itself is kept.
func (s *Service) UnlinkEntity(ctx context.Context, id *identity.Identity, memoryID, entityID string) error {
	m, err := s.authorize(id, memoryID, model.ActionUpdate)
	if err != nil {
		return err
	}
	return s.store.UnlinkEntity(m.ID, entityID)
}

// GrantAccess gives userID explicit read or write access to a memory.
// Granting again replaces the permission.
func (s *Service) GrantAccess(ctx context.Context, id *identity.Identity, memoryID, userID string, perm model.Permission) (*model.MemoryGrant, error) {
	if !perm.Valid() {
		return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, perm)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	m, err := s.authorize(id, memoryID, model.ActionShare)
	if err != nil {
		return nil, err
	}
	if userID == m.OwnerID {
		return nil, fmt.Errorf("%w: the owner already has full access", ErrInvalidInput)
	}
	g := &model.MemoryGrant{
		MemoryID:   m.ID,
		UserID:     userID,
		Permission: perm,
		GrantedBy:  id.UserID,
		CreatedAt:  s.now(),
	}
	if err := s.store.SaveGrant(g); err != nil {
		return nil, err
	}
	return g, nil
}

// RevokeAccess removes a user's grant
func (s *Service) RevokeAccess(ctx context.Context, id *identity.Identity, memoryID, userID string) error {
	m, err := s.authorize(id, memoryID, model.ActionShare)
	if err != nil {
		return err
	}
	return s.store.DeleteGrant(m.ID, userID)
}

// SearchResult is a memory with its search score
type SearchResult struct {
	Memory model.Memory `json:"memory"`
	Score  float64      `json:"score"`
}

// SearchMemories finds readable, unarchived memories matching query. With
// an index, candidates are ranked by similarity weighted by importance;
// otherwise memories containing the query text are returned by importance.
func (s *Service) SearchMemories(ctx context.Context, id *identity.Identity, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	limit = s.clampLimit(limit)
	defer s.logAccess(id, "", model.ActionSearch, true, truncate(query, 200))

	if s.index == nil || s.index.Len() == 0 {
		return s.textSearch(ctx, id, query, limit)
	}

	// Other users' memories can crowd the nearest hits, so widen the
	// window until enough readable ones turn up or the index runs out.
	now := s.now()
	var results []SearchResult
	seen := 0
	for n := limit * 3; ; n *= 2 {
		hits, err := s.index.Query(ctx, query, n)
		if err != nil {
			return nil, fmt.Errorf("semantic search failed: %w", err)
		}
		if seen > len(hits) {
			seen = len(hits)
		}
		for _, hit := range hits[seen:] {
			m, err := s.store.GetMemory(hit.ID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if m.IsArchived || !s.readable(id, m, now) {
				continue
			}
			results = append(results, SearchResult{
				Memory: *m,
				Score:  float64(hit.Similarity) * (0.5 + 0.5*m.Importance),
			})
		}
		seen = len(hits)
		if len(results) >= limit || len(hits) < n || seen >= s.index.Len() {
			break
		}
	}
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		tags, err := s.store.MemoryTags(results[i].Memory.ID)
		if err != nil {
			return nil, err
		}
		results[i].Memory.Tags = tags
	}
	return results, nil
}

func (s *Service) textSearch(ctx context.Context, id *identity.Identity, query string, limit int) ([]SearchResult, error) {
	memories, err := s.ListMemories(ctx, id, ListFilter{Text: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(memories))
	for _, m := range memories {
		results = append(results, SearchResult{Memory: m, Score: m.Importance})
	}
	return results, nil
}

// readable checks read access without writing to the access log
func (s *Service) readable(id *identity.Identity, m *model.Memory, now time.Time) bool {
	var grant *model.MemoryGrant
	if m.AccessLevel == model.AccessRestricted && id.Authenticated() {
		if g, err := s.store.GetGrant(m.ID, id.UserID); err == nil {
			grant = g
		}
	}
	return CanAccess(id, m, model.ActionRead, grant, now)
}

func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
