package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/authenticator/authn"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
	"github.com/hasad-erp/hasad/pkg/token"
)

// ChangePassword replaces the password of a signed in user after checking
// the current one. Every other session of the user is revoked.
func (s *Service) ChangePassword(userID, sessionID, oldPassword, newPassword string, client Client) error {
	user, err := s.stores.Users.GetUser(userID)
	if err != nil {
		return err
	}

	fail := func(err error) error {
		s.record(logFor(user, model.AuthEventPasswordChange, client, false, err.Error()), audit.PasswordEvent{
			UserID:       user.ID,
			ClientIP:     client.IP,
			Operation:    "change",
			ErrorMessage: err.Error(),
		})
		return err
	}

	if err := authn.Compare(user.PasswordHash, oldPassword); err != nil {
		return fail(ErrInvalidCredentials)
	}
	if oldPassword == newPassword {
		return fail(ErrPasswordReused)
	}
	if err := s.setPassword(user, newPassword); err != nil {
		return fail(err)
	}
	if _, err := s.revokeSessionsExcept(user.ID, sessionID); err != nil {
		return err
	}

	s.record(logFor(user, model.AuthEventPasswordChange, client, true, ""), audit.PasswordEvent{
		UserID:    user.ID,
		ClientIP:  client.IP,
		Operation: "change",
		Success:   true,
	})
	return nil
}

// RequestPasswordReset issues a single-use reset token for the account with
// the given email. Unknown or disabled accounts yield an empty token and no
// error so that callers cannot discover which emails are registered.
func (s *Service) RequestPasswordReset(email string, client Client) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := s.now()

	user, err := s.stores.Users.GetUserByLogin(email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !strings.EqualFold(user.Email, email) || !user.IsActive {
		s.record(model.AuthLog{
			Username:  email,
			EventType: model.AuthEventResetRequested,
			IPAddress: client.IP,
			UserAgent: client.UserAgent,
			Details:   "no matching account",
		}, nil)
		return "", nil
	}

	// Only the newest reset token is usable
	if err := s.stores.Tokens.RevokeUserTokens(user.ID, model.TokenPasswordReset, now); err != nil {
		return "", fmt.Errorf("failed to revoke earlier reset tokens: %w", err)
	}

	raw, digest, err := token.NewOpaque()
	if err != nil {
		return "", err
	}
	if err := s.stores.Tokens.CreateToken(&model.Token{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: digest,
		TokenType: model.TokenPasswordReset,
		ExpiresAt: now.Add(s.cfg.ResetTTL()),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	s.record(logFor(user, model.AuthEventResetRequested, client, true, ""), audit.PasswordEvent{
		UserID:    user.ID,
		ClientIP:  client.IP,
		Operation: "reset-request",
		Success:   true,
	})
	return raw, nil
}

// ResetPassword consumes a reset token and sets a new password. The lockout
// is cleared and every session of the user is revoked.
func (s *Service) ResetPassword(resetToken, newPassword string, client Client) error {
	now := s.now()
	tok, err := s.lookupToken(resetToken, model.TokenPasswordReset, now)
	if err != nil {
		return err
	}

	user, err := s.stores.Users.GetUser(tok.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	// Check the policy first so a rejected password does not burn the token
	if err := authn.ValidatePolicy(newPassword, s.cfg.PasswordMinLength); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	revoked, err := s.stores.Tokens.RevokeToken(tok.ID, now)
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if !revoked {
		return ErrTokenRevoked
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	if err := s.setPassword(user, newPassword); err != nil {
		return err
	}
	if _, err := s.revokeSessionsExcept(user.ID, ""); err != nil {
		return err
	}

	s.record(logFor(user, model.AuthEventPasswordReset, client, true, ""), audit.PasswordEvent{
		UserID:    user.ID,
		ClientIP:  client.IP,
		Operation: "reset",
		Success:   true,
	})
	return nil
}

// SetPassword replaces a user's password without the current one and signs
// them out everywhere. It backs administrative tooling.
func (s *Service) SetPassword(userID, newPassword, actor string) error {
	user, err := s.stores.Users.GetUser(userID)
	if err != nil {
		return err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	if err := s.setPassword(user, newPassword); err != nil {
		return err
	}
	if _, err := s.revokeSessionsExcept(user.ID, ""); err != nil {
		return err
	}
	by := actor
	if by == "" {
		by = "system"
	}
	s.record(logFor(user, model.AuthEventPasswordReset, Client{}, true, "set by "+by), audit.AccountEvent{
		ActorID:   actor,
		UserID:    user.ID,
		Operation: "set-password",
		Success:   true,
	})
	return nil
}

func (s *Service) setPassword(user *model.User, password string) error {
	if err := authn.ValidatePolicy(password, s.cfg.PasswordMinLength); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	hash, err := authn.Hash(password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	now := s.now()
	user.PasswordHash = hash
	user.PasswordChangedAt = &now
	user.UpdatedAt = now
	if err := s.stores.Users.UpdateUser(user); err != nil {
		return fmt.Errorf("failed to save password: %w", err)
	}
	return nil
}
