package gorm

import (
	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure GrantStore implements store.GrantStore
var _ store.GrantStore = (*GrantStore)(nil)

// GrantStore implements store.GrantStore using GORM
type GrantStore struct {
	db *gorm.DB
}

// NewGrantStore creates a new GrantStore
func NewGrantStore(db *gorm.DB) *GrantStore {
	return &GrantStore{db: db}
}

func (s *GrantStore) SaveGrant(g *model.MemoryGrant) error {
	return translate(s.db.Exec(`
		INSERT INTO memory_grants (memory_id, user_id, permission, granted_by, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (memory_id, user_id) DO UPDATE SET
			permission = EXCLUDED.permission,
			granted_by = EXCLUDED.granted_by`,
		g.MemoryID, g.UserID, g.Permission, g.GrantedBy, g.CreatedAt,
	).Error)
}

func (s *GrantStore) GetGrant(memoryID, userID string) (*model.MemoryGrant, error) {
	if !validID(memoryID) || !validID(userID) {
		return nil, store.ErrNotFound
	}
	var g model.MemoryGrant
	if err := s.db.Where("memory_id = ? AND user_id = ?", memoryID, userID).First(&g).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (s *GrantStore) DeleteGrant(memoryID, userID string) error {
	if !validID(memoryID) || !validID(userID) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(`DELETE FROM memory_grants WHERE memory_id = ? AND user_id = ?`, memoryID, userID))
}

func (s *GrantStore) ListGrants(memoryID string) ([]model.MemoryGrant, error) {
	if !validID(memoryID) {
		return nil, nil
	}
	var grants []model.MemoryGrant
	if err := s.db.Where("memory_id = ?", memoryID).Order("created_at").Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}
