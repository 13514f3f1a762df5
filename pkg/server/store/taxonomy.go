package store

import "github.com/hasad-erp/hasad/pkg/model"

// TaxonomyStore abstracts the crop taxonomy tree
type TaxonomyStore interface {
	// CreateTaxon returns ErrConflict when a sibling has the same
	// scientific name
	CreateTaxon(t *model.CropTaxon) error
	GetTaxon(id string) (*model.CropTaxon, error)
	UpdateTaxon(t *model.CropTaxon) error
	DeleteTaxon(id string) error

	// ListChildren returns direct children ordered by scientific name; an
	// empty parentID lists the roots
	ListChildren(parentID string) ([]model.CropTaxon, error)
	CountChildren(id string) (int64, error)

	// FindSibling finds a taxon under parentID with the scientific name,
	// case-insensitively
	FindSibling(parentID, scientificName string) (*model.CropTaxon, error)

	ListTaxa() ([]model.CropTaxon, error)

	// SearchTaxa matches scientific, Arabic and common names
	SearchTaxa(query string, limit int) ([]model.CropTaxon, error)
}
