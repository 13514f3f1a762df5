package store

import "github.com/hasad-erp/hasad/pkg/model"

// OAuthStore abstracts linked external accounts
type OAuthStore interface {
	// CreateOAuthAccount returns ErrConflict if the provider identity is
	// already linked
	CreateOAuthAccount(a *model.OAuthAccount) error
	GetOAuthAccount(id string) (*model.OAuthAccount, error)
	FindOAuthAccount(provider, providerUserID string) (*model.OAuthAccount, error)
	ListOAuthAccounts(userID string) ([]model.OAuthAccount, error)
	DeleteOAuthAccount(id string) error
}
