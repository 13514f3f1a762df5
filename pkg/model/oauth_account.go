package model

import "time"

// OAuthAccount links a local user to an identity at an external provider
type OAuthAccount struct {
	ID             string     `gorm:"column:id;primaryKey" json:"id"`
	UserID         string     `gorm:"column:user_id" json:"user_id"`
	Provider       string     `gorm:"column:provider" json:"provider"`
	ProviderUserID string     `gorm:"column:provider_user_id" json:"provider_user_id"`
	Email          string     `gorm:"column:email" json:"email"`
	AccessToken    []byte     `gorm:"column:access_token" json:"-"`
	RefreshToken   []byte     `gorm:"column:refresh_token" json:"-"`
	ExpiresAt      *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (OAuthAccount) TableName() string {
	return "oauth_accounts"
}
