package gorm

import (
	"time"

	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure SessionStore implements store.SessionStore
var _ store.SessionStore = (*SessionStore)(nil)

// SessionStore implements store.SessionStore using GORM
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) CreateSession(sess *model.UserSession) error {
	return translate(s.db.Create(sess).Error)
}

func (s *SessionStore) GetSession(id string) (*model.UserSession, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var sess model.UserSession
	if err := s.db.Where("id = ?", id).First(&sess).Error; err != nil {
		return nil, translate(err)
	}
	return &sess, nil
}

func (s *SessionStore) ListActiveSessions(userID string, now time.Time) ([]model.UserSession, error) {
	if !validID(userID) {
		return nil, nil
	}
	var sessions []model.UserSession
	err := s.db.Raw(`
		SELECT * FROM user_sessions
		WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?
		ORDER BY last_activity_at DESC`,
		userID, now,
	).Scan(&sessions).Error
	return sessions, err
}

func (s *SessionStore) TouchSession(id string, at time.Time) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(`UPDATE user_sessions SET last_activity_at = ? WHERE id = ?`, at, id))
}

func (s *SessionStore) RevokeSession(id string, at time.Time) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(
		`UPDATE user_sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`,
		at, id,
	))
}

// DeleteStaleSessions removes expired or revoked sessions; their tokens go
// with them through the foreign key cascade.
func (s *SessionStore) DeleteStaleSessions(before time.Time) (int64, error) {
	tx := s.db.Exec(`DELETE FROM user_sessions WHERE expires_at < ? OR revoked_at < ?`, before, before)
	return tx.RowsAffected, tx.Error
}
