package gorm

import (
	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure AuthLogStore implements store.AuthLogStore
var _ store.AuthLogStore = (*AuthLogStore)(nil)

// AuthLogStore implements store.AuthLogStore using GORM
type AuthLogStore struct {
	db *gorm.DB
}

// NewAuthLogStore creates a new AuthLogStore
func NewAuthLogStore(db *gorm.DB) *AuthLogStore {
	return &AuthLogStore{db: db}
}

func (s *AuthLogStore) CreateAuthLog(l *model.AuthLog) error {
	return translate(s.db.Create(l).Error)
}

func (s *AuthLogStore) ListAuthLogs(userID string, limit int) ([]model.AuthLog, error) {
	var logs []model.AuthLog
	tx := s.db.Order("created_at DESC")
	if userID != "" {
		if !validID(userID) {
			return nil, nil
		}
		tx = tx.Where("user_id = ?", userID)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
