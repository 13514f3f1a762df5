package gorm

import (
	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure AccessLogStore implements store.MemoryAccessLogStore
var _ store.MemoryAccessLogStore = (*AccessLogStore)(nil)

// AccessLogStore implements store.MemoryAccessLogStore using GORM
type AccessLogStore struct {
	db *gorm.DB
}

// NewAccessLogStore creates a new AccessLogStore
func NewAccessLogStore(db *gorm.DB) *AccessLogStore {
	return &AccessLogStore{db: db}
}

func (s *AccessLogStore) CreateAccessLog(l *model.MemoryAccessLog) error {
	return translate(s.db.Create(l).Error)
}

func (s *AccessLogStore) ListAccessLogs(memoryID string, limit int) ([]model.MemoryAccessLog, error) {
	if !validID(memoryID) {
		return nil, nil
	}
	tx := s.db.Where("memory_id = ?", memoryID).Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var logs []model.MemoryAccessLog
	if err := tx.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
