// Package taxonomy manages the crop classification tree, from family down
// to cultivar. Each node has a rank strictly lower than its parent's, and
// scientific names are unique among siblings.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

var (
	ErrNotFound     = store.ErrNotFound
	ErrConflict     = store.ErrConflict
	ErrForbidden    = errors.New("operation not permitted")
	ErrInvalidInput = errors.New("invalid taxon")
	ErrInvalidRank  = errors.New("rank must be lower than the parent's")
	ErrHasChildren  = errors.New("taxon has children")
	ErrCycle        = errors.New("taxon cannot be moved under its own descendant")
)

// Service implements the taxonomy operations
type Service struct {
	store    store.TaxonomyStore
	validate *validator.Validate
	now      func() time.Time
}

// New creates a Service. now defaults to time.Now.
func New(st store.TaxonomyStore, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    st,
		validate: validator.New(),
		now:      func() time.Time { return now().UTC() },
	}
}

// TaxonInput describes a taxon. An empty ParentID makes a root, which must
// be a family.
type TaxonInput struct {
	ParentID       string          `json:"parent_id,omitempty"`
	Rank           model.TaxonRank `json:"rank" validate:"required,oneof=family genus species variety cultivar"`
	ScientificName string          `json:"scientific_name" validate:"required,max=255"`
	ArabicName     string          `json:"arabic_name,omitempty" validate:"max=255"`
	CommonName     string          `json:"common_name,omitempty" validate:"max=255"`
	Description    string          `json:"description,omitempty" validate:"max=4000"`
}

func (s *Service) check(in *TaxonInput) error {
	in.ParentID = strings.TrimSpace(in.ParentID)
	in.ScientificName = strings.TrimSpace(in.ScientificName)
	in.ArabicName = strings.TrimSpace(in.ArabicName)
	in.CommonName = strings.TrimSpace(in.CommonName)
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// checkPlacement verifies rank against the parent. A missing parent is
// reported as invalid input rather than not found.
func (s *Service) checkPlacement(parentID string, rank model.TaxonRank) error {
	if parentID == "" {
		if rank != model.RankFamily {
			return fmt.Errorf("%w: a root taxon must be a family", ErrInvalidRank)
		}
		return nil
	}
	parent, err := s.store.GetTaxon(parentID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: parent %s does not exist", ErrInvalidInput, parentID)
	}
	if err != nil {
		return err
	}
	if !rank.Below(parent.Rank) {
		return fmt.Errorf("%w: %s under %s", ErrInvalidRank, rank, parent.Rank)
	}
	return nil
}

func canEdit(id *identity.Identity) bool {
	return id.Authenticated() && id.HasRole(model.RoleManager)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateTaxon adds a taxon under in.ParentID
func (s *Service) CreateTaxon(ctx context.Context, id *identity.Identity, in TaxonInput) (*model.CropTaxon, error) {
	if !canEdit(id) {
		return nil, ErrForbidden
	}
	if err := s.check(&in); err != nil {
		return nil, err
	}
	if err := s.checkPlacement(in.ParentID, in.Rank); err != nil {
		return nil, err
	}

	now := s.now()
	t := &model.CropTaxon{
		ID:             uuid.NewString(),
		ParentID:       optional(in.ParentID),
		Rank:           in.Rank,
		ScientificName: in.ScientificName,
		ArabicName:     in.ArabicName,
		CommonName:     in.CommonName,
		Description:    strings.TrimSpace(in.Description),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTaxon(t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %q already exists here", ErrConflict, in.ScientificName)
		}
		return nil, err
	}
	return t, nil
}

// GetTaxon returns a taxon
func (s *Service) GetTaxon(ctx context.Context, taxonID string) (*model.CropTaxon, error) {
	return s.store.GetTaxon(taxonID)
}

// UpdateTaxon replaces a taxon's fields, possibly moving it. The new rank
// must still be above every child's rank, and a taxon cannot be moved under
// itself or its descendants.
func (s *Service) UpdateTaxon(ctx context.Context, id *identity.Identity, taxonID string, in TaxonInput) (*model.CropTaxon, error) {
	if !canEdit(id) {
		return nil, ErrForbidden
	}
	if err := s.check(&in); err != nil {
		return nil, err
	}
	t, err := s.store.GetTaxon(taxonID)
	if err != nil {
		return nil, err
	}

	if in.ParentID != "" {
		lineage, err := s.lineage(in.ParentID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		for _, a := range lineage {
			if a.ID == t.ID {
				return nil, ErrCycle
			}
		}
	}
	if err := s.checkPlacement(in.ParentID, in.Rank); err != nil {
		return nil, err
	}
	children, err := s.store.ListChildren(t.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if !c.Rank.Below(in.Rank) {
			return nil, fmt.Errorf("%w: child %s is a %s", ErrInvalidRank, c.ScientificName, c.Rank)
		}
	}

	t.ParentID = optional(in.ParentID)
	t.Rank = in.Rank
	t.ScientificName = in.ScientificName
	t.ArabicName = in.ArabicName
	t.CommonName = in.CommonName
	t.Description = strings.TrimSpace(in.Description)
	t.UpdatedAt = s.now()
	if err := s.store.UpdateTaxon(t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %q already exists here", ErrConflict, in.ScientificName)
		}
		return nil, err
	}
	return t, nil
}

// DeleteTaxon removes a leaf taxon
func (s *Service) DeleteTaxon(ctx context.Context, id *identity.Identity, taxonID string) error {
	if !canEdit(id) {
		return ErrForbidden
	}
	if _, err := s.store.GetTaxon(taxonID); err != nil {
		return err
	}
	n, err := s.store.CountChildren(taxonID)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrHasChildren
	}
	if err := s.store.DeleteTaxon(taxonID); err != nil {
		// a child was added concurrently
		if errors.Is(err, store.ErrConflict) {
			return ErrHasChildren
		}
		return err
	}
	return nil
}

// Children returns the direct children of a taxon, or the roots when
// taxonID is empty
func (s *Service) Children(ctx context.Context, taxonID string) ([]model.CropTaxon, error) {
	if taxonID != "" {
		if _, err := s.store.GetTaxon(taxonID); err != nil {
			return nil, err
		}
	}
	return s.store.ListChildren(taxonID)
}

// Lineage returns the path from the root down to taxonID, inclusive
func (s *Service) Lineage(ctx context.Context, taxonID string) ([]model.CropTaxon, error) {
	return s.lineage(taxonID)
}

func (s *Service) lineage(taxonID string) ([]model.CropTaxon, error) {
	var path []model.CropTaxon
	seen := map[string]bool{}
	for next := taxonID; next != ""; {
		if seen[next] {
			return nil, fmt.Errorf("%w at %s", ErrCycle, next)
		}
		seen[next] = true
		t, err := s.store.GetTaxon(next)
		if err != nil {
			return nil, err
		}
		path = append(path, *t)
		next = ""
		if t.ParentID != nil {
			next = *t.ParentID
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Tree returns every root with its descendants nested in Children
func (s *Service) Tree(ctx context.Context) ([]*model.CropTaxon, error) {
	all, err := s.store.ListTaxa()
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*model.CropTaxon, len(all))
	for i := range all {
		nodes[all[i].ID] = &all[i]
	}
	// all is sorted by scientific name, so children keep that order
	var roots []*model.CropTaxon
	for i := range all {
		t := &all[i]
		if t.ParentID == nil {
			roots = append(roots, t)
			continue
		}
		parent, ok := nodes[*t.ParentID]
		if !ok {
			roots = append(roots, t)
			continue
		}
		parent.Children = append(parent.Children, t)
	}
	return roots, nil
}

// SearchTaxa matches scientific, Arabic and common names
func (s *Service) SearchTaxa(ctx context.Context, query string, limit int) ([]model.CropTaxon, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.SearchTaxa(query, limit)
}
