package gorm

import (
	"time"

	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure MFAStore implements store.MFAStore
var _ store.MFAStore = (*MFAStore)(nil)

// MFAStore implements store.MFAStore using GORM
type MFAStore struct {
	db *gorm.DB
}

// NewMFAStore creates a new MFAStore
func NewMFAStore(db *gorm.DB) *MFAStore {
	return &MFAStore{db: db}
}

func (s *MFAStore) GetMFAConfig(userID string) (*model.MFAConfiguration, error) {
	if !validID(userID) {
		return nil, store.ErrNotFound
	}
	var cfg model.MFAConfiguration
	if err := s.db.Where("user_id = ?", userID).First(&cfg).Error; err != nil {
		return nil, translate(err)
	}
	return &cfg, nil
}

// SaveMFAConfig upserts the configuration. The secret arrives already
// encrypted.
func (s *MFAStore) SaveMFAConfig(cfg *model.MFAConfiguration) error {
	return translate(s.db.Exec(`
		INSERT INTO mfa_configurations (user_id, secret, enabled, backup_codes, verified_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			secret = EXCLUDED.secret,
			enabled = EXCLUDED.enabled,
			backup_codes = EXCLUDED.backup_codes,
			verified_at = EXCLUDED.verified_at,
			updated_at = EXCLUDED.updated_at`,
		cfg.UserID, cfg.Secret, cfg.Enabled, cfg.BackupCodes, cfg.VerifiedAt, cfg.CreatedAt, cfg.UpdatedAt,
	).Error)
}

// ConsumeBackupCode removes digest in a single conditional statement, so
// of two concurrent logins presenting the same code only one matches.
func (s *MFAStore) ConsumeBackupCode(userID, digest string, at time.Time) (bool, error) {
	if !validID(userID) {
		return false, nil
	}
	tx := s.db.Exec(`
		UPDATE mfa_configurations SET
			backup_codes = (
				SELECT COALESCE(jsonb_agg(code), '[]'::jsonb)::text
				FROM jsonb_array_elements_text(backup_codes::jsonb) AS code
				WHERE code <> ?
			),
			updated_at = ?
		WHERE user_id = ? AND backup_codes::jsonb @> jsonb_build_array(?::text)`,
		digest, at, userID, digest,
	)
	if tx.Error != nil {
		return false, translate(tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

func (s *MFAStore) DeleteMFAConfig(userID string) error {
	if !validID(userID) {
		return nil
	}
	return s.db.Exec(`DELETE FROM mfa_configurations WHERE user_id = ?`, userID).Error
}
