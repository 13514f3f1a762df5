package memory

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
	"github.com/hasad-erp/hasad/pkg/tasks"
)

// Submitter queues background work
type Submitter interface {
	Submit(t tasks.Task) error
}

// Options configure a Service. Only Config is required.
type Options struct {
	Config *config.HasadConfig

	// Index enables semantic search. Without it search falls back to text
	// matching.
	Index *Index

	// Queue runs index updates in the background. Without it they run
	// inline.
	Queue Submitter

	Now func() time.Time
}

// Service implements the knowledge store operations
type Service struct {
	store    store.KnowledgeStore
	cfg      *config.HasadConfig
	index    *Index
	queue    Submitter
	validate *validator.Validate
	now      func() time.Time

	// index work for one memory runs under one of these, picked by id
	indexLocks [32]sync.Mutex
}

// New creates a Service
func New(st store.KnowledgeStore, opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, errors.New("memory: config is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    st,
		cfg:      opts.Config,
		index:    opts.Index,
		queue:    opts.Queue,
		validate: validator.New(),
		now:      func() time.Time { return opts.Now().UTC() },
	}, nil
}

// EntityRef names an entity to link, creating it if needed
type EntityRef struct {
	Name      string           `json:"name" validate:"required,max=200"`
	Type      model.EntityType `json:"entity_type" validate:"required"`
	Relevance *float64         `json:"relevance,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// CreateInput is a new memory. Importance defaults to 0.5, confidence to
// 1, type to fact and access level to internal.
type CreateInput struct {
	Title       string            `json:"title" validate:"required,max=500"`
	Content     string            `json:"content" validate:"required"`
	Summary     string            `json:"summary,omitempty" validate:"max=2000"`
	MemoryType  model.MemoryType  `json:"memory_type,omitempty"`
	Category    string            `json:"category,omitempty" validate:"max=100"`
	Source      string            `json:"source,omitempty" validate:"max=255"`
	Importance  *float64          `json:"importance,omitempty" validate:"omitempty,gte=0,lte=1"`
	Confidence  *float64          `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	AccessLevel model.AccessLevel `json:"access_level,omitempty"`
	Tags        []string          `json:"tags,omitempty" validate:"max=50"`
	Entities    []EntityRef       `json:"entities,omitempty" validate:"max=50,dive"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

// UpdateInput is a partial update; nil fields are left alone. A non-nil
// Tags replaces every tag.
type UpdateInput struct {
	Title       *string            `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	Content     *string            `json:"content,omitempty" validate:"omitempty,min=1"`
	Summary     *string            `json:"summary,omitempty" validate:"omitempty,max=2000"`
	MemoryType  *model.MemoryType  `json:"memory_type,omitempty"`
	Category    *string            `json:"category,omitempty" validate:"omitempty,max=100"`
	Source      *string            `json:"source,omitempty" validate:"omitempty,max=255"`
	Importance  *float64           `json:"importance,omitempty" validate:"omitempty,gte=0,lte=1"`
	Confidence  *float64           `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	AccessLevel *model.AccessLevel `json:"access_level,omitempty"`
	Tags        *[]string          `json:"tags,omitempty"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
}

func (s *Service) check(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// CreateMemory stores a memory owned by id and queues it for indexing
func (s *Service) CreateMemory(ctx context.Context, id *identity.Identity, in CreateInput) (*model.Memory, error) {
	if !canCreate(id) {
		s.logAccess(id, "", model.ActionCreate, false, "")
		return nil, ErrForbidden
	}
	if in.MemoryType == "" {
		in.MemoryType = model.MemoryFact
	}
	if in.AccessLevel == "" {
		in.AccessLevel = model.AccessInternal
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	if !in.MemoryType.Valid() {
		return nil, fmt.Errorf("%w: unknown memory type %q", ErrInvalidInput, in.MemoryType)
	}
	if !in.AccessLevel.Valid() {
		return nil, fmt.Errorf("%w: unknown access level %q", ErrInvalidInput, in.AccessLevel)
	}
	for _, e := range in.Entities {
		if !e.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, e.Type)
		}
	}

	now := s.now()
	m := &model.Memory{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		Summary:     strings.TrimSpace(in.Summary),
		MemoryType:  in.MemoryType,
		Category:    strings.TrimSpace(in.Category),
		Source:      strings.TrimSpace(in.Source),
		Importance:  valueOr(in.Importance, 0.5),
		Confidence:  valueOr(in.Confidence, 1),
		AccessLevel: in.AccessLevel,
		OwnerID:     id.UserID,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateMemory(m); err != nil {
		return nil, fmt.Errorf("failed to create memory: %w", err)
	}

	if names := model.NormalizeTags(in.Tags); len(names) > 0 {
		tags, err := s.store.EnsureTags(names)
		if err != nil {
			return nil, fmt.Errorf("failed to create tags: %w", err)
		}
		if err := s.store.SetMemoryTags(m.ID, tagIDs(tags)); err != nil {
			return nil, fmt.Errorf("failed to tag memory: %w", err)
		}
		m.Tags = tags
	}
	for _, ref := range in.Entities {
		linked, err := s.linkEntity(m.ID, ref)
		if err != nil {
			return nil, err
		}
		m.Entities = append(m.Entities, *linked)
	}

	s.logAccess(id, m.ID, model.ActionCreate, true, "")
	s.reindex(m)
	return m, nil
}

// GetMemory returns a memory with its tags and entities, counting the
// access. Grants are included for the owner and admins.
func (s *Service) GetMemory(ctx context.Context, id *identity.Identity, memoryID string) (*model.Memory, error) {
	m, err := s.authorize(id, memoryID, model.ActionRead)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.store.RecordAccess(m.ID, now); err != nil {
		log.Printf("memory: failed to record access to %s: %v", m.ID, err)
	} else {
		m.AccessCount++
		m.LastAccessedAt = &now
	}
	if err := s.hydrate(m, id); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMemory applies a partial update and re-indexes the memory when its
// text changed
func (s *Service) UpdateMemory(ctx context.Context, id *identity.Identity, memoryID string, in UpdateInput) (*model.Memory, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if (in.Title != nil && strings.TrimSpace(*in.Title) == "") || (in.Content != nil && strings.TrimSpace(*in.Content) == "") {
		return nil, fmt.Errorf("%w: title and content cannot be empty", ErrInvalidInput)
	}
	if in.MemoryType != nil && !in.MemoryType.Valid() {
		return nil, fmt.Errorf("%w: unknown memory type %q", ErrInvalidInput, *in.MemoryType)
	}
	if in.AccessLevel != nil && !in.AccessLevel.Valid() {
		return nil, fmt.Errorf("%w: unknown access level %q", ErrInvalidInput, *in.AccessLevel)
	}

	m, err := s.authorize(id, memoryID, model.ActionUpdate)
	if err != nil {
		return nil, err
	}

	// Changing who can see a memory is sharing it
	if in.AccessLevel != nil && *in.AccessLevel != m.AccessLevel && !s.isOwnerOrAdmin(id, m) {
		s.logAccess(id, m.ID, model.ActionShare, false, "access level change")
		return nil, ErrForbidden
	}

	textChanged := false
	if in.Title != nil {
		m.Title = strings.TrimSpace(*in.Title)
		textChanged = true
	}
	if in.Content != nil {
		m.Content = *in.Content
		textChanged = true
	}
	if in.Summary != nil {
		m.Summary = strings.TrimSpace(*in.Summary)
		textChanged = true
	}
	if in.MemoryType != nil {
		m.MemoryType = *in.MemoryType
	}
	if in.Category != nil {
		m.Category = strings.TrimSpace(*in.Category)
	}
	if in.Source != nil {
		m.Source = strings.TrimSpace(*in.Source)
	}
	if in.Importance != nil {
		m.Importance = *in.Importance
	}
	if in.Confidence != nil {
		m.Confidence = *in.Confidence
	}
	if in.AccessLevel != nil {
		m.AccessLevel = *in.AccessLevel
	}
	if in.ExpiresAt != nil {
		m.ExpiresAt = in.ExpiresAt
	}
	m.UpdatedAt = s.now()

	if err := s.store.UpdateMemory(m); err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}

	if in.Tags != nil {
		var ids []string
		if names := model.NormalizeTags(*in.Tags); len(names) > 0 {
			tags, err := s.store.EnsureTags(names)
			if err != nil {
				return nil, fmt.Errorf("failed to create tags: %w", err)
			}
			ids = tagIDs(tags)
		}
		if err := s.store.SetMemoryTags(m.ID, ids); err != nil {
			return nil, fmt.Errorf("failed to tag memory: %w", err)
		}
		textChanged = true
	}

	if err := s.hydrate(m, id); err != nil {
		return nil, err
	}
	if textChanged {
		s.reindex(m)
	}
	return m, nil
}

// DeleteMemory removes a memory, its links and grants, and its index entry
func (s *Service) DeleteMemory(ctx context.Context, id *identity.Identity, memoryID string) error {
	m, err := s.authorize(id, memoryID, model.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMemory(m.ID); err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	s.unindex(m.ID)
	return nil
}

// ArchiveMemory hides a memory from listings without deleting it
func (s *Service) ArchiveMemory(ctx context.Context, id *identity.Identity, memoryID string) (*model.Memory, error) {
	return s.setArchived(id, memoryID, true)
}

// UnarchiveMemory returns an archived memory to listings
func (s *Service) UnarchiveMemory(ctx context.Context, id *identity.Identity, memoryID string) (*model.Memory, error) {
	return s.setArchived(id, memoryID, false)
}

func (s *Service) setArchived(id *identity.Identity, memoryID string, archived bool) (*model.Memory, error) {
	m, err := s.authorize(id, memoryID, model.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if m.IsArchived == archived {
		return m, nil
	}
	m.IsArchived = archived
	m.UpdatedAt = s.now()
	if err := s.store.UpdateMemory(m); err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}
	return m, nil
}

// ListFilter narrows ListMemories
type ListFilter struct {
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

// ListMemories returns the memories id can read, most important first
func (s *Service) ListMemories(ctx context.Context, id *identity.Identity, f ListFilter) ([]model.Memory, error) {
	memories, err := s.store.ListMemories(store.MemoryFilter{
		Viewer:          viewer(id),
		Now:             s.now(),
		Type:            f.Type,
		Category:        f.Category,
		Tag:             model.NormalizeTag(f.Tag),
		EntityID:        f.EntityID,
		OwnerID:         f.OwnerID,
		Text:            strings.TrimSpace(f.Text),
		IncludeArchived: f.IncludeArchived,
		Limit:           s.clampLimit(f.Limit),
		Offset:          f.Offset,
	})
	if err != nil {
		return nil, err
	}
	for i := range memories {
		tags, err := s.store.MemoryTags(memories[i].ID)
		if err != nil {
			return nil, err
		}
		memories[i].Tags = tags
	}
	return memories, nil
}

// RelatedMemories ranks readable memories by the tags and entities they
// share with memoryID
func (s *Service) RelatedMemories(ctx context.Context, id *identity.Identity, memoryID string, limit int) ([]model.Memory, error) {
	if _, err := s.authorize(id, memoryID, model.ActionRead); err != nil {
		return nil, err
	}
	return s.store.RelatedMemories(memoryID, store.MemoryFilter{
		Viewer: viewer(id),
		Now:    s.now(),
		Limit:  s.clampLimit(limit),
	})
}

// AccessLog returns the newest access decisions on a memory. Only the
// owner and admins may read it.
func (s *Service) AccessLog(ctx context.Context, id *identity.Identity, memoryID string, limit int) ([]model.MemoryAccessLog, error) {
	m, err := s.store.GetMemory(memoryID)
	if err != nil {
		return nil, err
	}
	if !s.isOwnerOrAdmin(id, m) {
		return nil, ErrForbidden
	}
	return s.store.ListAccessLogs(memoryID, s.clampLimit(limit))
}

// Stats summarises the store
func (s *Service) Stats(ctx context.Context) (*model.MemoryStats, error) {
	return s.store.MemoryStats()
}

// RenderMemoryHTML renders a readable memory's content as HTML
func (s *Service) RenderMemoryHTML(ctx context.Context, id *identity.Identity, memoryID string) (string, error) {
	m, err := s.authorize(id, memoryID, model.ActionRead)
	if err != nil {
		return "", err
	}
	return RenderHTML(m.Content)
}

// authorize loads a memory and checks action against it. Every decision is
// written to the access log.
func (s *Service) authorize(id *identity.Identity, memoryID string, action model.MemoryAction) (*model.Memory, error) {
	m, err := s.store.GetMemory(memoryID)
	if err != nil {
		return nil, err
	}

	var grant *model.MemoryGrant
	if id.Authenticated() && id.UserID != m.OwnerID && !id.IsAdmin() {
		g, err := s.store.GetGrant(m.ID, id.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		grant = g
	}

	granted := CanAccess(id, m, action, grant, s.now())
	s.logAccess(id, m.ID, action, granted, "")
	if !granted {
		return nil, ErrForbidden
	}
	return m, nil
}

func (s *Service) isOwnerOrAdmin(id *identity.Identity, m *model.Memory) bool {
	return id.IsAdmin() || (id.Authenticated() && id.UserID == m.OwnerID)
}

func (s *Service) hydrate(m *model.Memory, id *identity.Identity) error {
	tags, err := s.store.MemoryTags(m.ID)
	if err != nil {
		return err
	}
	entities, err := s.store.MemoryEntities(m.ID)
	if err != nil {
		return err
	}
	m.Tags = tags
	m.Entities = entities
	if s.isOwnerOrAdmin(id, m) {
		grants, err := s.store.ListGrants(m.ID)
		if err != nil {
			return err
		}
		m.Grants = grants
	}
	return nil
}

func (s *Service) logAccess(id *identity.Identity, memoryID string, action model.MemoryAction, granted bool, details string) {
	entry := &model.MemoryAccessLog{
		ID:        uuid.NewString(),
		Action:    action,
		Granted:   granted,
		IPAddress: id.IP(),
		Details:   details,
		CreatedAt: s.now(),
	}
	if memoryID != "" {
		entry.MemoryID = &memoryID
	}
	var userID string
	if id.Authenticated() {
		userID = id.UserID
		entry.UserID = &userID
	}
	if err := s.store.CreateAccessLog(entry); err != nil {
		log.Printf("memory: failed to write access log: %v", err)
	}
	audit.Log(audit.MemoryAccessEvent{
		UserID:   userID,
		ClientIP: id.IP(),
		MemoryID: memoryID,
		Action:   string(action),
		Success:  granted,
	})
}

// embedText is what gets embedded for a memory
func embedText(m *model.Memory) string {
	parts := []string{m.Title}
	if m.Summary != "" {
		parts = append(parts, m.Summary)
	}
	parts = append(parts, PlainText(m.Content))
	if len(m.Tags) > 0 {
		parts = append(parts, strings.Join(m.TagNames(), " "))
	}
	return strings.Join(parts, "\n")
}

func (s *Service) indexLock(memoryID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(memoryID))
	return &s.indexLocks[h.Sum32()%uint32(len(s.indexLocks))]
}

// reindex queues an embedding refresh. The task reads the memory when it
// runs, so tasks for the same memory may finish in any order and the index
// still ends up matching the store.
func (s *Service) reindex(m *model.Memory) {
	if s.index == nil {
		return
	}
	memoryID := m.ID
	s.background("index:"+memoryID, func(ctx context.Context) error {
		return s.syncIndex(ctx, memoryID)
	})
}

func (s *Service) unindex(memoryID string) {
	if s.index == nil {
		return
	}
	s.background("unindex:"+memoryID, func(ctx context.Context) error {
		return s.syncIndex(ctx, memoryID)
	})
}

// syncIndex makes the index entry for memoryID agree with the store
func (s *Service) syncIndex(ctx context.Context, memoryID string) error {
	mu := s.indexLock(memoryID)
	mu.Lock()
	defer mu.Unlock()

	m, err := s.store.GetMemory(memoryID)
	if errors.Is(err, store.ErrNotFound) {
		return s.index.Remove(ctx, memoryID)
	}
	if err != nil {
		return err
	}
	tags, err := s.store.MemoryTags(memoryID)
	if err != nil {
		return err
	}
	m.Tags = tags
	return s.index.Upsert(ctx, memoryID, embedText(m))
}

// RebuildIndex embeds every stored memory, archived ones included. The index
// lives in process memory so a server fills it once on start.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	page := s.cfg.APIListLimitMax
	n := 0
	for offset := 0; ; offset += page {
		memories, err := s.store.ListMemories(store.MemoryFilter{
			Viewer:          store.Viewer{Admin: true},
			Now:             s.now(),
			IncludeArchived: true,
			Limit:           page,
			Offset:          offset,
		})
		if err != nil {
			return n, err
		}
		for _, m := range memories {
			if err := s.syncIndex(ctx, m.ID); err != nil {
				return n, fmt.Errorf("failed to index memory %s: %w", m.ID, err)
			}
			n++
		}
		if len(memories) < page {
			return n, nil
		}
	}
}

func (s *Service) background(name string, run func(ctx context.Context) error) {
	if s.queue != nil {
		err := s.queue.Submit(tasks.Task{Name: name, Priority: tasks.PriorityNormal, Run: run})
		if err == nil {
			return
		}
		log.Printf("memory: %s not queued, running inline: %v", name, err)
	}
	if err := run(context.Background()); err != nil {
		log.Printf("memory: %s failed: %v", name, err)
	}
}

func (s *Service) clampLimit(limit int) int {
	max := s.cfg.APIListLimitMax
	if limit <= 0 || limit > max {
		if limit <= 0 && max > 50 {
			return 50
		}
		return max
	}
	return limit
}

func viewer(id *identity.Identity) store.Viewer {
	if !id.Authenticated() {
		return store.Viewer{}
	}
	return store.Viewer{UserID: id.UserID, Admin: id.IsAdmin()}
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func tagIDs(tags []model.Tag) []string {
	ids := make([]string, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}
