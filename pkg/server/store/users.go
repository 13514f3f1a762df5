package store

import (
	"time"

	"github.com/hasad-erp/hasad/pkg/model"
)

// UserStore abstracts account storage
type UserStore interface {
	// CreateUser inserts a user. Returns ErrConflict if the username or
	// email is taken.
	CreateUser(user *model.User) error

	// GetUser returns a user by id or ErrNotFound.
	GetUser(id string) (*model.User, error)

	// GetUserByLogin finds a user by username or email, case-insensitively.
	GetUserByLogin(login string) (*model.User, error)

	// UpdateUser saves every column of the user.
	UpdateUser(user *model.User) error

	// ListUsers returns users ordered by username.
	ListUsers(limit, offset int) ([]model.User, error)

	// RecordFailedLogin atomically increments the failure counter and sets
	// locked_until once the counter reaches threshold. It returns the new
	// counter value and the lock expiry, if any.
	RecordFailedLogin(userID string, threshold int, lockUntil time.Time) (int, *time.Time, error)

	// RecordSuccessfulLogin clears the failure counter and lock and stamps
	// last_login_at.
	RecordSuccessfulLogin(userID string, at time.Time) error
}
