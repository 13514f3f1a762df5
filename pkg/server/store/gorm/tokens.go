package gorm

import (
	"time"

	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure TokenStore implements store.TokenStore
var _ store.TokenStore = (*TokenStore)(nil)

// TokenStore implements store.TokenStore using GORM
type TokenStore struct {
	db *gorm.DB
}

// NewTokenStore creates a new TokenStore
func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) CreateToken(t *model.Token) error {
	return translate(s.db.Create(t).Error)
}

func (s *TokenStore) GetToken(id string) (*model.Token, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var t model.Token
	if err := s.db.Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *TokenStore) GetTokenByHash(hash string) (*model.Token, error) {
	var t model.Token
	if err := s.db.Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// RevokeToken reports false when the token was already revoked. The
// conditional update makes concurrent refreshes race to a single winner.
func (s *TokenStore) RevokeToken(id string, at time.Time) (bool, error) {
	if !validID(id) {
		return false, store.ErrNotFound
	}
	tx := s.db.Exec(`UPDATE tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, at, id)
	if tx.Error != nil {
		return false, translate(tx.Error)
	}
	if tx.RowsAffected == 1 {
		return true, nil
	}
	var n int64
	if err := s.db.Model(&model.Token{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (s *TokenStore) RecordTokenFailure(id string) (int, error) {
	if !validID(id) {
		return 0, store.ErrNotFound
	}
	var row struct {
		FailedAttempts int `gorm:"column:failed_attempts"`
	}
	tx := s.db.Raw(
		`UPDATE tokens SET failed_attempts = failed_attempts + 1 WHERE id = ? RETURNING failed_attempts`,
		id,
	).Scan(&row)
	if tx.Error != nil {
		return 0, translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return 0, store.ErrNotFound
	}
	return row.FailedAttempts, nil
}

func (s *TokenStore) RevokeSessionTokens(sessionID string, at time.Time) error {
	if !validID(sessionID) {
		return nil
	}
	return s.db.Exec(
		`UPDATE tokens SET revoked_at = ? WHERE session_id = ? AND revoked_at IS NULL`,
		at, sessionID,
	).Error
}

func (s *TokenStore) RevokeUserTokens(userID string, tokenType model.TokenType, at time.Time) error {
	if !validID(userID) {
		return nil
	}
	return s.db.Exec(
		`UPDATE tokens SET revoked_at = ? WHERE user_id = ? AND token_type = ? AND revoked_at IS NULL`,
		at, userID, tokenType,
	).Error
}

func (s *TokenStore) DeleteExpiredTokens(before time.Time) (int64, error) {
	tx := s.db.Exec(`DELETE FROM tokens WHERE expires_at < ?`, before)
	return tx.RowsAffected, tx.Error
}
