package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// ListSessions returns the user's active sessions
func (s *Service) ListSessions(userID string) ([]model.UserSession, error) {
	return s.stores.Sessions.ListActiveSessions(userID, s.now())
}

// RevokeSession revokes one of the user's own sessions
func (s *Service) RevokeSession(userID, sessionID string, client Client) error {
	session, err := s.stores.Sessions.GetSession(sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		// Other users' sessions are indistinguishable from missing ones
		return ErrNotFound
	}
	if err := s.revokeSession(sessionID, s.now()); err != nil {
		return err
	}
	s.record(model.AuthLog{
		UserID:    &session.UserID,
		EventType: model.AuthEventSessionRevoked,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Success:   true,
		Details:   sessionID,
	}, audit.SessionEvent{
		UserID:    userID,
		SessionID: sessionID,
		ClientIP:  client.IP,
		Operation: "revoke",
		Success:   true,
	})
	return nil
}

// RevokeOtherSessions revokes every active session of the user except
// keepSessionID and returns how many were revoked
func (s *Service) RevokeOtherSessions(userID, keepSessionID string, client Client) (int, error) {
	n, err := s.revokeSessionsExcept(userID, keepSessionID)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.record(model.AuthLog{
			UserID:    &userID,
			EventType: model.AuthEventSessionRevoked,
			IPAddress: client.IP,
			UserAgent: client.UserAgent,
			Success:   true,
			Details:   fmt.Sprintf("%d other sessions", n),
		}, audit.SessionEvent{
			UserID:    userID,
			SessionID: keepSessionID,
			ClientIP:  client.IP,
			Operation: "revoke-others",
			Success:   true,
		})
	}
	return n, nil
}

func (s *Service) revokeSession(sessionID string, now time.Time) error {
	if err := s.stores.Sessions.RevokeSession(sessionID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if err := s.stores.Tokens.RevokeSessionTokens(sessionID, now); err != nil {
		return fmt.Errorf("failed to revoke session tokens: %w", err)
	}
	return nil
}

// revokeSessionsExcept revokes the user's active sessions other than keep.
// An empty keep revokes all of them.
func (s *Service) revokeSessionsExcept(userID, keep string) (int, error) {
	now := s.now()
	sessions, err := s.stores.Sessions.ListActiveSessions(userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	n := 0
	for _, session := range sessions {
		if session.ID == keep {
			continue
		}
		if err := s.revokeSession(session.ID, now); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
