package store

import (
	"time"

	"github.com/hasad-erp/hasad/pkg/model"
)

// SessionStore abstracts login session storage
type SessionStore interface {
	CreateSession(s *model.UserSession) error
	GetSession(id string) (*model.UserSession, error)

	// ListActiveSessions returns the user's unrevoked, unexpired sessions,
	// most recently active first
	ListActiveSessions(userID string, now time.Time) ([]model.UserSession, error)

	// TouchSession updates last_activity_at
	TouchSession(id string, at time.Time) error

	RevokeSession(id string, at time.Time) error

	// DeleteStaleSessions removes sessions that expired or were revoked
	// before the given time
	DeleteStaleSessions(before time.Time) (int64, error)
}
