package memstore

import (
	"sort"
	"strings"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

func parentOf(t model.CropTaxon) string {
	if t.ParentID == nil {
		return ""
	}
	return *t.ParentID
}

func (s *Store) siblingLocked(parentID, name, exceptID string) *model.CropTaxon {
	for _, t := range s.taxa {
		if t.ID != exceptID && parentOf(t) == parentID && strings.EqualFold(t.ScientificName, name) {
			return &t
		}
	}
	return nil
}

func taxonCopy(t model.CropTaxon) model.CropTaxon {
	t.Children = nil
	return t
}

func byScientificName(ts []model.CropTaxon) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ScientificName < ts[j].ScientificName })
}

func (s *Store) CreateTaxon(t *model.CropTaxon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.taxa[t.ID]; ok {
		return store.ErrConflict
	}
	if s.siblingLocked(parentOf(*t), t.ScientificName, t.ID) != nil {
		return store.ErrConflict
	}
	s.taxa[t.ID] = taxonCopy(*t)
	return nil
}

func (s *Store) GetTaxon(id string) (*model.CropTaxon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.taxa[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) UpdateTaxon(t *model.CropTaxon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.taxa[t.ID]; !ok {
		return store.ErrNotFound
	}
	if s.siblingLocked(parentOf(*t), t.ScientificName, t.ID) != nil {
		return store.ErrConflict
	}
	s.taxa[t.ID] = taxonCopy(*t)
	return nil
}

func (s *Store) DeleteTaxon(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.taxa[id]; !ok {
		return store.ErrNotFound
	}
	for _, t := range s.taxa {
		if parentOf(t) == id {
			return store.ErrConflict
		}
	}
	delete(s.taxa, id)
	return nil
}

func (s *Store) ListChildren(parentID string) ([]model.CropTaxon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.CropTaxon{}
	for _, t := range s.taxa {
		if parentOf(t) == parentID {
			out = append(out, t)
		}
	}
	byScientificName(out)
	return out, nil
}

func (s *Store) CountChildren(id string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, t := range s.taxa {
		if parentOf(t) == id {
			n++
		}
	}
	return n, nil
}

func (s *Store) FindSibling(parentID, scientificName string) (*model.CropTaxon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t := s.siblingLocked(parentID, scientificName, ""); t != nil {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListTaxa() ([]model.CropTaxon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CropTaxon, 0, len(s.taxa))
	for _, t := range s.taxa {
		out = append(out, t)
	}
	byScientificName(out)
	return out, nil
}

func (s *Store) SearchTaxa(query string, limit int) ([]model.CropTaxon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	out := []model.CropTaxon{}
	for _, t := range s.taxa {
		if strings.Contains(strings.ToLower(t.ScientificName), q) ||
			strings.Contains(strings.ToLower(t.CommonName), q) ||
			strings.Contains(t.ArabicName, strings.TrimSpace(query)) {
			out = append(out, t)
		}
	}
	byScientificName(out)
	return page(out, limit, 0), nil
}
