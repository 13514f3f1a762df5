package model

import "time"

// TaxonRank is a level of the crop classification
type TaxonRank string

const (
	RankFamily   TaxonRank = "family"
	RankGenus    TaxonRank = "genus"
	RankSpecies  TaxonRank = "species"
	RankVariety  TaxonRank = "variety"
	RankCultivar TaxonRank = "cultivar"
)

var rankDepth = map[TaxonRank]int{
	RankFamily:   1,
	RankGenus:    2,
	RankSpecies:  3,
	RankVariety:  4,
	RankCultivar: 5,
}

// Valid reports whether r is a known rank
func (r TaxonRank) Valid() bool {
	_, ok := rankDepth[r]
	return ok
}

// Below reports whether r is a strictly lower rank than other
func (r TaxonRank) Below(other TaxonRank) bool {
	return rankDepth[r] > rankDepth[other]
}

// CropTaxon is a node of the crop taxonomy
type CropTaxon struct {
	ID             string    `gorm:"column:id;primaryKey" json:"id"`
	ParentID       *string   `gorm:"column:parent_id" json:"parent_id,omitempty"`
	Rank           TaxonRank `gorm:"column:rank" json:"rank"`
	ScientificName string    `gorm:"column:scientific_name" json:"scientific_name"`
	ArabicName     string    `gorm:"column:arabic_name" json:"arabic_name,omitempty"`
	CommonName     string    `gorm:"column:common_name" json:"common_name,omitempty"`
	Description    string    `gorm:"column:description" json:"description,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`

	Children []*CropTaxon `gorm:"-" json:"children,omitempty"`
}

func (CropTaxon) TableName() string {
	return "crop_taxa"
}
