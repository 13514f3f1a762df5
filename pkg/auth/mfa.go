package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
	"github.com/hasad-erp/hasad/pkg/token"
)

// totpOpts accepts codes from one step before and after the current one
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

const backupCodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// MFASetup is returned once, when a user starts TOTP enrolment
type MFASetup struct {
	Secret      string   `json:"secret"`
	URL         string   `json:"otpauth_url"`
	BackupCodes []string `json:"backup_codes"`
}

// MFAStatus describes a user's second factor
type MFAStatus struct {
	Configured           bool       `json:"configured"`
	Enabled              bool       `json:"enabled"`
	VerifiedAt           *time.Time `json:"verified_at,omitempty"`
	BackupCodesRemaining int        `json:"backup_codes_remaining"`
}

// SetupMFA generates a new TOTP secret and backup codes. The configuration
// stays disabled until EnableMFA confirms a code.
func (s *Service) SetupMFA(userID string, client Client) (*MFASetup, error) {
	user, err := s.stores.Users.GetUser(userID)
	if err != nil {
		return nil, err
	}
	existing, err := s.stores.MFA.GetMFAConfig(userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Enabled {
		return nil, ErrMFAAlreadyEnabled
	}

	account := user.Email
	if account == "" {
		account = user.Username
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.MFAIssuer,
		AccountName: account,
		Period:      totpOpts.Period,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	sealed, err := s.cipher.Encrypt([]byte(userID), []byte(key.Secret()))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt TOTP secret: %w", err)
	}
	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		return nil, err
	}

	now := s.now()
	cfg := &model.MFAConfiguration{
		UserID:      userID,
		Secret:      sealed,
		BackupCodes: hashes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		cfg.CreatedAt = existing.CreatedAt
	}
	if err := s.stores.MFA.SaveMFAConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to save MFA configuration: %w", err)
	}

	audit.Log(audit.MFAEvent{UserID: userID, ClientIP: client.IP, Operation: "setup", Success: true})
	return &MFASetup{Secret: key.Secret(), URL: key.URL(), BackupCodes: codes}, nil
}

// EnableMFA turns on a pending configuration once the user proves they can
// produce a current code
func (s *Service) EnableMFA(userID, code string, client Client) error {
	cfg, err := s.mfaConfig(userID)
	if err != nil {
		return err
	}
	if cfg.Enabled {
		return ErrMFAAlreadyEnabled
	}
	if _, err := s.verifyMFA(cfg, code, false); err != nil {
		s.mfaEvent(userID, model.AuthEventMFAFailed, "enable", client, err)
		return err
	}

	now := s.now()
	cfg.Enabled = true
	cfg.VerifiedAt = &now
	cfg.UpdatedAt = now
	if err := s.stores.MFA.SaveMFAConfig(cfg); err != nil {
		return fmt.Errorf("failed to save MFA configuration: %w", err)
	}
	s.mfaEvent(userID, model.AuthEventMFAEnabled, "enable", client, nil)
	return nil
}

// DisableMFA removes the second factor. A TOTP or backup code is required.
func (s *Service) DisableMFA(userID, code string, client Client) error {
	cfg, err := s.mfaConfig(userID)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return ErrMFANotEnabled
	}
	if _, err := s.verifyMFA(cfg, code, true); err != nil {
		s.mfaEvent(userID, model.AuthEventMFAFailed, "disable", client, err)
		return err
	}
	if err := s.stores.MFA.DeleteMFAConfig(userID); err != nil {
		return fmt.Errorf("failed to delete MFA configuration: %w", err)
	}
	s.mfaEvent(userID, model.AuthEventMFADisabled, "disable", client, nil)
	return nil
}

// RegenerateBackupCodes replaces every backup code. A current TOTP code is
// required.
func (s *Service) RegenerateBackupCodes(userID, code string, client Client) ([]string, error) {
	cfg, err := s.mfaConfig(userID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, ErrMFANotEnabled
	}
	if _, err := s.verifyMFA(cfg, code, false); err != nil {
		s.mfaEvent(userID, model.AuthEventMFAFailed, "backup-codes", client, err)
		return nil, err
	}
	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		return nil, err
	}
	cfg.BackupCodes = hashes
	cfg.UpdatedAt = s.now()
	if err := s.stores.MFA.SaveMFAConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to save MFA configuration: %w", err)
	}
	audit.Log(audit.MFAEvent{UserID: userID, ClientIP: client.IP, Operation: "backup-codes", Success: true})
	return codes, nil
}

// MFAStatus reports whether the user has a second factor
func (s *Service) MFAStatus(userID string) (*MFAStatus, error) {
	cfg, err := s.stores.MFA.GetMFAConfig(userID)
	if errors.Is(err, store.ErrNotFound) {
		return &MFAStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &MFAStatus{
		Configured:           true,
		Enabled:              cfg.Enabled,
		VerifiedAt:           cfg.VerifiedAt,
		BackupCodesRemaining: len(cfg.BackupCodes),
	}, nil
}

func (s *Service) mfaConfig(userID string) (*model.MFAConfiguration, error) {
	cfg, err := s.stores.MFA.GetMFAConfig(userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMFANotConfigured
	}
	return cfg, err
}

// verifyMFA checks code against the TOTP secret and, when allowBackup is
// set, against the unused backup codes. A matching backup code is spent in
// the store and removed from cfg.
func (s *Service) verifyMFA(cfg *model.MFAConfiguration, code string, allowBackup bool) (usedBackup bool, err error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, ErrInvalidMFACode
	}

	secret, err := s.cipher.Decrypt([]byte(cfg.UserID), cfg.Secret)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}
	ok, err := totp.ValidateCustom(code, string(secret), s.now(), totpOpts)
	if err == nil && ok {
		return false, nil
	}

	if !allowBackup {
		return false, ErrInvalidMFACode
	}
	digest := token.Hash(normalizeBackupCode(code))
	for i, h := range cfg.BackupCodes {
		if h != digest {
			continue
		}
		consumed, err := s.stores.MFA.ConsumeBackupCode(cfg.UserID, digest, s.now())
		if err != nil {
			return false, fmt.Errorf("failed to consume backup code: %w", err)
		}
		if !consumed {
			// spent by a concurrent login since cfg was loaded
			return false, ErrInvalidMFACode
		}
		remaining := make(model.StringList, 0, len(cfg.BackupCodes)-1)
		remaining = append(remaining, cfg.BackupCodes[:i]...)
		cfg.BackupCodes = append(remaining, cfg.BackupCodes[i+1:]...)
		return true, nil
	}
	return false, ErrInvalidMFACode
}

// newBackupCodes returns plaintext codes formatted xxxxx-xxxxx and their
// digests
func (s *Service) newBackupCodes() ([]string, model.StringList, error) {
	n := s.cfg.MFABackupCodes
	codes := make([]string, 0, n)
	hashes := make(model.StringList, 0, n)
	max := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < n; i++ {
		var b strings.Builder
		for j := 0; j < 10; j++ {
			if j == 5 {
				b.WriteByte('-')
			}
			idx, err := rand.Int(rand.Reader, max)
			if err != nil {
				return nil, nil, err
			}
			b.WriteByte(backupCodeAlphabet[idx.Int64()])
		}
		code := b.String()
		codes = append(codes, code)
		hashes = append(hashes, token.Hash(normalizeBackupCode(code)))
	}
	return codes, hashes, nil
}

func normalizeBackupCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

func (s *Service) mfaEvent(userID string, eventType model.AuthEventType, op string, client Client, err error) {
	entry := model.AuthLog{
		UserID:    &userID,
		EventType: eventType,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Success:   err == nil,
	}
	event := audit.MFAEvent{UserID: userID, ClientIP: client.IP, Operation: op, Success: err == nil}
	if err != nil {
		entry.Details = err.Error()
		event.ErrorMessage = err.Error()
	}
	s.record(entry, event)
}
