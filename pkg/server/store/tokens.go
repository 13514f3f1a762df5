package store

import (
	"time"

	"github.com/hasad-erp/hasad/pkg/model"
)

// TokenStore abstracts storage of issued tokens
type TokenStore interface {
	// CreateToken records an issued token
	CreateToken(t *model.Token) error

	// GetToken returns a token by id (the jti for access tokens)
	GetToken(id string) (*model.Token, error)

	// GetTokenByHash returns a token by the digest of its raw value
	GetTokenByHash(hash string) (*model.Token, error)

	// RevokeToken revokes a single token. It reports false when the token
	// was already revoked, which makes single-use tokens safe to consume
	// concurrently.
	RevokeToken(id string, at time.Time) (bool, error)

	// RecordTokenFailure increments a token's failed-attempt counter and
	// returns the new count
	RecordTokenFailure(id string) (int, error)

	// RevokeSessionTokens revokes every token bound to a session
	RevokeSessionTokens(sessionID string, at time.Time) error

	// RevokeUserTokens revokes all of a user's unrevoked tokens of one type
	RevokeUserTokens(userID string, tokenType model.TokenType, at time.Time) error

	// DeleteExpiredTokens removes tokens that expired before the given time
	DeleteExpiredTokens(before time.Time) (int64, error)
}
