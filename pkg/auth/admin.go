package auth

import (
	"fmt"
	"time"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/model"
)

// GetUser returns an account
func (s *Service) GetUser(userID string) (*model.User, error) {
	return s.stores.Users.GetUser(userID)
}

// ListUsers returns accounts ordered by username. limit is capped at
// api_list_limit_max.
func (s *Service) ListUsers(limit, offset int) ([]model.User, error) {
	return s.stores.Users.ListUsers(s.clampLimit(limit), offset)
}

// UnlockUser clears a lockout and the failure counter
func (s *Service) UnlockUser(actor, userID string) error {
	user, err := s.stores.Users.GetUser(userID)
	if err != nil {
		return err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.UpdatedAt = s.now()
	if err := s.stores.Users.UpdateUser(user); err != nil {
		return err
	}
	s.adminEvent(actor, user, model.AuthEventAccountUnlocked, "unlock", "")
	return nil
}

// SetUserActive enables or disables an account. Disabling signs the user
// out everywhere.
func (s *Service) SetUserActive(actor, userID string, active bool) error {
	user, err := s.stores.Users.GetUser(userID)
	if err != nil {
		return err
	}
	user.IsActive = active
	user.UpdatedAt = s.now()
	if err := s.stores.Users.UpdateUser(user); err != nil {
		return err
	}
	if !active {
		if _, err := s.revokeSessionsExcept(user.ID, ""); err != nil {
			return err
		}
		s.adminEvent(actor, user, model.AuthEventAccountDisabled, "deactivate", "")
		return nil
	}
	s.adminEvent(actor, user, model.AuthEventAccountEnabled, "activate", "")
	return nil
}

// SetUserRole changes an account's role
func (s *Service) SetUserRole(actor, userID string, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	user, err := s.stores.Users.GetUser(userID)
	if err != nil {
		return err
	}
	previous := user.Role
	user.Role = role
	user.UpdatedAt = s.now()
	if err := s.stores.Users.UpdateUser(user); err != nil {
		return err
	}
	s.adminEvent(actor, user, model.AuthEventRoleChanged, "set-role", fmt.Sprintf("%s -> %s", previous, role))
	return nil
}

// AuthLogs returns the newest entries first. An empty userID lists every
// user's entries.
func (s *Service) AuthLogs(userID string, limit int) ([]model.AuthLog, error) {
	return s.stores.AuthLogs.ListAuthLogs(userID, s.clampLimit(limit))
}

// PurgeResult counts what PurgeExpired removed
type PurgeResult struct {
	Tokens   int64 `json:"tokens"`
	Sessions int64 `json:"sessions"`
}

// PurgeExpired deletes expired tokens, and sessions that expired or were
// revoked more than a day before now
func (s *Service) PurgeExpired(now time.Time) (*PurgeResult, error) {
	tokens, err := s.stores.Tokens.DeleteExpiredTokens(now)
	if err != nil {
		return nil, fmt.Errorf("failed to purge tokens: %w", err)
	}
	sessions, err := s.stores.Sessions.DeleteStaleSessions(now.Add(-24 * time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return &PurgeResult{Tokens: tokens, Sessions: sessions}, nil
}

func (s *Service) clampLimit(limit int) int {
	max := s.cfg.APIListLimitMax
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

func (s *Service) adminEvent(actor string, user *model.User, eventType model.AuthEventType, op, detail string) {
	s.record(logFor(user, eventType, Client{}, true, detail), audit.AccountEvent{
		ActorID:   actor,
		UserID:    user.ID,
		Operation: op,
		Detail:    detail,
		Success:   true,
	})
}
