package gorm

import (
	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure TaxonomyStore implements store.TaxonomyStore
var _ store.TaxonomyStore = (*TaxonomyStore)(nil)

// TaxonomyStore implements store.TaxonomyStore using GORM
type TaxonomyStore struct {
	db *gorm.DB
}

// NewTaxonomyStore creates a new TaxonomyStore
func NewTaxonomyStore(db *gorm.DB) *TaxonomyStore {
	return &TaxonomyStore{db: db}
}

func (s *TaxonomyStore) CreateTaxon(t *model.CropTaxon) error {
	return translate(s.db.Create(t).Error)
}

func (s *TaxonomyStore) GetTaxon(id string) (*model.CropTaxon, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var t model.CropTaxon
	if err := s.db.Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *TaxonomyStore) UpdateTaxon(t *model.CropTaxon) error {
	if !validID(t.ID) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(`
		UPDATE crop_taxa SET
			parent_id = ?, rank = ?, scientific_name = ?, arabic_name = ?, common_name = ?,
			description = ?, updated_at = ?
		WHERE id = ?`,
		t.ParentID, t.Rank, t.ScientificName, t.ArabicName, t.CommonName,
		t.Description, t.UpdatedAt,
		t.ID,
	))
}

// DeleteTaxon refuses to orphan children with ErrConflict.
func (s *TaxonomyStore) DeleteTaxon(id string) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	n, err := s.CountChildren(id)
	if err != nil {
		return err
	}
	if n > 0 {
		return store.ErrConflict
	}
	return affected(s.db.Exec(`DELETE FROM crop_taxa WHERE id = ?`, id))
}

func (s *TaxonomyStore) ListChildren(parentID string) ([]model.CropTaxon, error) {
	var taxa []model.CropTaxon
	tx := s.db.Order("scientific_name")
	if parentID == "" {
		tx = tx.Where("parent_id IS NULL")
	} else {
		if !validID(parentID) {
			return nil, nil
		}
		tx = tx.Where("parent_id = ?", parentID)
	}
	if err := tx.Find(&taxa).Error; err != nil {
		return nil, err
	}
	return taxa, nil
}

func (s *TaxonomyStore) CountChildren(id string) (int64, error) {
	if !validID(id) {
		return 0, nil
	}
	var n int64
	err := s.db.Model(&model.CropTaxon{}).Where("parent_id = ?", id).Count(&n).Error
	return n, err
}

func (s *TaxonomyStore) FindSibling(parentID, scientificName string) (*model.CropTaxon, error) {
	tx := s.db.Where("lower(scientific_name) = lower(?)", scientificName)
	if parentID == "" {
		tx = tx.Where("parent_id IS NULL")
	} else {
		if !validID(parentID) {
			return nil, store.ErrNotFound
		}
		tx = tx.Where("parent_id = ?", parentID)
	}
	var t model.CropTaxon
	if err := tx.First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *TaxonomyStore) ListTaxa() ([]model.CropTaxon, error) {
	var taxa []model.CropTaxon
	if err := s.db.Order("scientific_name").Find(&taxa).Error; err != nil {
		return nil, err
	}
	return taxa, nil
}

func (s *TaxonomyStore) SearchTaxa(query string, limit int) ([]model.CropTaxon, error) {
	pattern := "%" + escapeLike(query) + "%"
	tx := s.db.Where("scientific_name ILIKE ? OR arabic_name ILIKE ? OR common_name ILIKE ?", pattern, pattern, pattern).
		Order("scientific_name")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var taxa []model.CropTaxon
	if err := tx.Find(&taxa).Error; err != nil {
		return nil, err
	}
	return taxa, nil
}
