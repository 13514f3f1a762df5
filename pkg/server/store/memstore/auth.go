package memstore

import (
	"sort"
	"time"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

func (s *Store) CreateToken(t *model.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tokens {
		if existing.ID == t.ID || existing.TokenHash == t.TokenHash {
			return store.ErrConflict
		}
	}
	s.tokens[t.ID] = *t
	return nil
}

func (s *Store) GetToken(id string) (*model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) GetTokenByHash(hash string) (*model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) RevokeToken(id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if t.RevokedAt != nil {
		return false, nil
	}
	t.RevokedAt = &at
	s.tokens[id] = t
	return true, nil
}

func (s *Store) RecordTokenFailure(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	t.FailedAttempts++
	s.tokens[id] = t
	return t.FailedAttempts, nil
}

func (s *Store) RevokeSessionTokens(sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tokens {
		if t.SessionID != nil && *t.SessionID == sessionID && t.RevokedAt == nil {
			t.RevokedAt = &at
			s.tokens[id] = t
		}
	}
	return nil
}

func (s *Store) RevokeUserTokens(userID string, tokenType model.TokenType, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tokens {
		if t.UserID == userID && t.TokenType == tokenType && t.RevokedAt == nil {
			t.RevokedAt = &at
			s.tokens[id] = t
		}
	}
	return nil
}

func (s *Store) DeleteExpiredTokens(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateSession(sess *model.UserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return store.ErrConflict
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetSession(id string) (*model.UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) ListActiveSessions(userID string, now time.Time) ([]model.UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.UserSession
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Active(now) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.After(out[j].LastActivityAt) })
	return out, nil
}

func (s *Store) TouchSession(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.LastActivityAt = at
	s.sessions[id] = sess
	return nil
}

func (s *Store) RevokeSession(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if sess.RevokedAt == nil {
		sess.RevokedAt = &at
		s.sessions[id] = sess
	}
	return nil
}

func (s *Store) DeleteStaleSessions(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(before) || (sess.RevokedAt != nil && sess.RevokedAt.Before(before)) {
			delete(s.sessions, id)
			for tid, t := range s.tokens {
				if t.SessionID != nil && *t.SessionID == id {
					delete(s.tokens, tid)
				}
			}
			n++
		}
	}
	return n, nil
}

func (s *Store) GetMFAConfig(userID string) (*model.MFAConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.mfa[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cfg.BackupCodes = append(model.StringList(nil), cfg.BackupCodes...)
	return &cfg, nil
}

func (s *Store) SaveMFAConfig(cfg *model.MFAConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cfg
	c.BackupCodes = append(model.StringList(nil), cfg.BackupCodes...)
	s.mfa[cfg.UserID] = c
	return nil
}

func (s *Store) ConsumeBackupCode(userID, digest string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.mfa[userID]
	if !ok {
		return false, nil
	}
	for i, h := range cfg.BackupCodes {
		if h != digest {
			continue
		}
		remaining := make(model.StringList, 0, len(cfg.BackupCodes)-1)
		remaining = append(remaining, cfg.BackupCodes[:i]...)
		cfg.BackupCodes = append(remaining, cfg.BackupCodes[i+1:]...)
		cfg.UpdatedAt = at
		s.mfa[userID] = cfg
		return true, nil
	}
	return false, nil
}

func (s *Store) DeleteMFAConfig(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.mfa, userID)
	return nil
}

func (s *Store) CreateAuthLog(l *model.AuthLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authLogs = append(s.authLogs, *l)
	return nil
}

func (s *Store) ListAuthLogs(userID string, limit int) ([]model.AuthLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AuthLog
	for i := len(s.authLogs) - 1; i >= 0; i-- {
		l := s.authLogs[i]
		if userID != "" && (l.UserID == nil || *l.UserID != userID) {
			continue
		}
		out = append(out, l)
	}
	return page(out, limit, 0), nil
}

func (s *Store) CreateOAuthAccount(a *model.OAuthAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.oauth {
		if existing.Provider == a.Provider && existing.ProviderUserID == a.ProviderUserID {
			return store.ErrConflict
		}
	}
	s.oauth[a.ID] = *a
	return nil
}

func (s *Store) GetOAuthAccount(id string) (*model.OAuthAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.oauth[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) FindOAuthAccount(provider, providerUserID string) (*model.OAuthAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.oauth {
		if a.Provider == provider && a.ProviderUserID == providerUserID {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListOAuthAccounts(userID string) ([]model.OAuthAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.OAuthAccount
	for _, a := range s.oauth {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteOAuthAccount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.oauth[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.oauth, id)
	return nil
}
