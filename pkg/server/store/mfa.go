package store

import (
	"time"

	"github.com/hasad-erp/hasad/pkg/model"
)

// MFAStore abstracts TOTP enrolment storage
type MFAStore interface {
	// GetMFAConfig returns ErrNotFound when the user never set up MFA
	GetMFAConfig(userID string) (*model.MFAConfiguration, error)

	// SaveMFAConfig inserts or replaces the user's configuration
	SaveMFAConfig(cfg *model.MFAConfiguration) error

	// ConsumeBackupCode removes one backup-code digest. It reports false
	// when the digest is not (or no longer) present, so a code can be spent
	// only once even by concurrent logins.
	ConsumeBackupCode(userID, digest string, at time.Time) (bool, error)

	DeleteMFAConfig(userID string) error
}
