package model

import "time"

// TokenType distinguishes the purposes a stored token can serve
type TokenType string

const (
	TokenAccess        TokenType = "access"
	TokenRefresh       TokenType = "refresh"
	TokenPasswordReset TokenType = "password_reset"
	TokenMFAChallenge  TokenType = "mfa_challenge"
)

// Token records an issued token. Only a SHA-256 digest of the raw token is
// stored; access tokens are recorded by their jti.
type Token struct {
	ID        string     `gorm:"column:id;primaryKey" json:"id"`
	UserID    string     `gorm:"column:user_id" json:"user_id"`
	SessionID *string    `gorm:"column:session_id" json:"session_id,omitempty"`
	TokenHash string     `gorm:"column:token_hash" json:"-"`
	TokenType TokenType  `gorm:"column:token_type" json:"token_type"`
	ExpiresAt time.Time  `gorm:"column:expires_at" json:"expires_at"`
	RevokedAt *time.Time `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`

	// FailedAttempts counts wrong codes presented with an MFA challenge
	FailedAttempts int `gorm:"column:failed_attempts" json:"-"`
}

func (Token) TableName() string {
	return "tokens"
}

// Expired reports whether the token is past its expiry
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Revoked reports whether the token has been revoked
func (t *Token) Revoked() bool {
	return t.RevokedAt != nil
}
