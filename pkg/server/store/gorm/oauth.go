package gorm

import (
	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure OAuthStore implements store.OAuthStore
var _ store.OAuthStore = (*OAuthStore)(nil)

// OAuthStore implements store.OAuthStore using GORM
type OAuthStore struct {
	db *gorm.DB
}

// NewOAuthStore creates a new OAuthStore
func NewOAuthStore(db *gorm.DB) *OAuthStore {
	return &OAuthStore{db: db}
}

func (s *OAuthStore) CreateOAuthAccount(a *model.OAuthAccount) error {
	return translate(s.db.Create(a).Error)
}

func (s *OAuthStore) GetOAuthAccount(id string) (*model.OAuthAccount, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var a model.OAuthAccount
	if err := s.db.Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *OAuthStore) FindOAuthAccount(provider, providerUserID string) (*model.OAuthAccount, error) {
	var a model.OAuthAccount
	err := s.db.Where("provider = ? AND provider_user_id = ?", provider, providerUserID).First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *OAuthStore) ListOAuthAccounts(userID string) ([]model.OAuthAccount, error) {
	if !validID(userID) {
		return nil, nil
	}
	var accounts []model.OAuthAccount
	if err := s.db.Where("user_id = ?", userID).Order("created_at").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *OAuthStore) DeleteOAuthAccount(id string) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(`DELETE FROM oauth_accounts WHERE id = ?`, id))
}
