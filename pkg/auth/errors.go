package auth

import (
	"errors"

	"github.com/hasad-erp/hasad/pkg/authenticator"
	"github.com/hasad-erp/hasad/pkg/authenticator/authn"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

var (
	// ErrInvalidCredentials is the same value authenticators return, so
	// callers can test for either with errors.Is
	ErrInvalidCredentials = authenticator.ErrInvalidCredentials

	ErrInvalidInput      = errors.New("invalid input")
	ErrWeakPassword      = authn.ErrWeakPassword
	ErrPasswordReused    = errors.New("new password must differ from the current one")
	ErrAccountLocked     = errors.New("account is locked")
	ErrAccountDisabled   = errors.New("account is disabled")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenRevoked      = errors.New("token revoked")
	ErrSessionInactive   = errors.New("session is not active")
	ErrInvalidMFACode    = errors.New("invalid MFA code")
	ErrMFANotConfigured  = errors.New("MFA is not configured")
	ErrMFAAlreadyEnabled = errors.New("MFA is already enabled")
	ErrMFANotEnabled     = errors.New("MFA is not enabled")
	ErrUnknownProvider   = errors.New("unknown OAuth provider")
	ErrOAuthNotLinked    = errors.New("no account is linked to this identity")
	ErrInvalidRole       = errors.New("unknown role")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = store.ErrNotFound
	ErrConflict          = store.ErrConflict
)
