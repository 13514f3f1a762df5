package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/authenticator/authn"
	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
	"github.com/hasad-erp/hasad/pkg/token"
)

// LoginInput is a password login attempt
type LoginInput struct {
	Login     string `json:"login" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// TokenPair is what a client receives when a session is issued or refreshed
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	RefreshExpiresIn int       `json:"refresh_expires_in"`
	ExpiresAt        time.Time `json:"expires_at"`
	SessionID        string    `json:"session_id"`
}

// LoginResult carries either tokens or an MFA challenge
type LoginResult struct {
	MFARequired bool        `json:"mfa_required"`
	MFAToken    string      `json:"mfa_token,omitempty"`
	Tokens      *TokenPair  `json:"tokens,omitempty"`
	User        *model.User `json:"user,omitempty"`
}

// Login verifies a password. Failed attempts count towards the lockout
// threshold; reaching it locks the account for the configured duration.
func (s *Service) Login(in LoginInput) (*LoginResult, error) {
	client := Client{IP: in.IP, UserAgent: in.UserAgent}
	now := s.now()

	user, err := s.stores.Users.GetUserByLogin(in.Login)
	if errors.Is(err, store.ErrNotFound) {
		s.record(model.AuthLog{
			Username:  in.Login,
			EventType: model.AuthEventLoginFailed,
			IPAddress: in.IP,
			UserAgent: in.UserAgent,
			Details:   "unknown user",
		}, audit.AuthenticateEvent{Username: in.Login, ClientIP: in.IP, Method: "password", ErrorMessage: "unknown user"})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	fail := func(eventType model.AuthEventType, reason string) {
		s.record(logFor(user, eventType, client, false, reason), audit.AuthenticateEvent{
			UserID:       user.ID,
			Username:     user.Username,
			ClientIP:     in.IP,
			Method:       "password",
			ErrorMessage: reason,
		})
	}

	if !user.IsActive {
		fail(model.AuthEventLoginFailed, "account disabled")
		return nil, ErrAccountDisabled
	}
	if user.IsLocked(now) {
		fail(model.AuthEventLoginFailed, "account locked")
		return nil, ErrAccountLocked
	}

	if err := authn.Compare(user.PasswordHash, in.Password); err != nil {
		count, lockedUntil, rerr := s.stores.Users.RecordFailedLogin(user.ID, s.cfg.MaxFailedLogins, now.Add(s.cfg.Lockout()))
		if rerr != nil {
			return nil, fmt.Errorf("failed to record failed login: %w", rerr)
		}
		if lockedUntil != nil && lockedUntil.After(now) {
			fail(model.AuthEventAccountLocked, fmt.Sprintf("locked after %d failed attempts", count))
			return nil, ErrAccountLocked
		}
		fail(model.AuthEventLoginFailed, fmt.Sprintf("invalid password (%d of %d)", count, s.cfg.MaxFailedLogins))
		return nil, ErrInvalidCredentials
	}

	mfa, err := s.stores.MFA.GetMFAConfig(user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load MFA configuration: %w", err)
	}
	if mfa != nil && mfa.Enabled {
		// The failure counter stays as it is until the second factor
		// succeeds; wrong codes keep adding to it.
		raw, digest, err := token.NewOpaque()
		if err != nil {
			return nil, err
		}
		challenge := &model.Token{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			TokenHash: digest,
			TokenType: model.TokenMFAChallenge,
			ExpiresAt: now.Add(s.cfg.ChallengeTTL()),
			CreatedAt: now,
		}
		if err := s.stores.Tokens.CreateToken(challenge); err != nil {
			return nil, fmt.Errorf("failed to store MFA challenge: %w", err)
		}
		s.record(logFor(user, model.AuthEventMFAChallenge, client, true, "password accepted, code pending"), audit.MFAEvent{
			UserID:    user.ID,
			ClientIP:  in.IP,
			Operation: "challenge",
			Success:   true,
		})
		return &LoginResult{MFARequired: true, MFAToken: raw, User: user}, nil
	}

	if err := s.recordSuccess(user, now); err != nil {
		return nil, err
	}

	pair, err := s.issueSession(user, client)
	if err != nil {
		return nil, err
	}
	s.record(logFor(user, model.AuthEventLogin, client, true, ""), audit.AuthenticateEvent{
		UserID:   user.ID,
		Username: user.Username,
		ClientIP: in.IP,
		Method:   "password",
		Success:  true,
	})
	return &LoginResult{Tokens: pair, User: user}, nil
}

// CompleteMFALogin exchanges an MFA challenge and a TOTP or backup code for
// a session
func (s *Service) CompleteMFALogin(mfaToken, code string, client Client) (*LoginResult, error) {
	now := s.now()
	challenge, err := s.lookupToken(mfaToken, model.TokenMFAChallenge, now)
	if err != nil {
		return nil, err
	}

	user, err := s.activeUser(challenge.UserID, now)
	if err != nil {
		return nil, err
	}

	cfg, err := s.stores.MFA.GetMFAConfig(user.ID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !cfg.Enabled) {
		return nil, ErrMFANotEnabled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load MFA configuration: %w", err)
	}

	usedBackup, err := s.verifyMFA(cfg, code, true)
	if errors.Is(err, ErrInvalidMFACode) {
		return nil, s.failMFA(user, challenge, client, now)
	}
	if err != nil {
		return nil, err
	}

	revoked, err := s.stores.Tokens.RevokeToken(challenge.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to consume MFA challenge: %w", err)
	}
	if !revoked {
		return nil, ErrTokenRevoked
	}

	if err := s.recordSuccess(user, now); err != nil {
		return nil, err
	}
	if usedBackup {
		s.record(logFor(user, model.AuthEventBackupCodeUsed, client, true, fmt.Sprintf("%d codes left", len(cfg.BackupCodes))), nil)
	}

	pair, err := s.issueSession(user, client)
	if err != nil {
		return nil, err
	}
	s.record(logFor(user, model.AuthEventLogin, client, true, "mfa"), audit.AuthenticateEvent{
		UserID:   user.ID,
		Username: user.Username,
		ClientIP: client.IP,
		Method:   "mfa",
		Success:  true,
	})
	return &LoginResult{Tokens: pair, User: user}, nil
}

// maxChallengeAttempts is how many wrong codes one MFA challenge accepts
// before it is revoked
const maxChallengeAttempts = 5

// failMFA counts a wrong code against both the account lockout and the
// challenge, and returns the error the caller should see
func (s *Service) failMFA(user *model.User, challenge *model.Token, client Client, now time.Time) error {
	fail := func(eventType model.AuthEventType, reason string) {
		s.record(logFor(user, eventType, client, false, reason), audit.AuthenticateEvent{
			UserID:       user.ID,
			Username:     user.Username,
			ClientIP:     client.IP,
			Method:       "mfa",
			ErrorMessage: reason,
		})
	}

	count, lockedUntil, err := s.stores.Users.RecordFailedLogin(user.ID, s.cfg.MaxFailedLogins, now.Add(s.cfg.Lockout()))
	if err != nil {
		return fmt.Errorf("failed to record failed login: %w", err)
	}
	if lockedUntil != nil && lockedUntil.After(now) {
		if _, err := s.stores.Tokens.RevokeToken(challenge.ID, now); err != nil {
			log.Printf("auth: failed to revoke MFA challenge %s: %v", challenge.ID, err)
		}
		fail(model.AuthEventAccountLocked, fmt.Sprintf("locked after %d failed attempts", count))
		return ErrAccountLocked
	}

	attempts, err := s.stores.Tokens.RecordTokenFailure(challenge.ID)
	if err != nil {
		return fmt.Errorf("failed to record MFA attempt: %w", err)
	}
	if attempts >= maxChallengeAttempts {
		if _, err := s.stores.Tokens.RevokeToken(challenge.ID, now); err != nil {
			return fmt.Errorf("failed to revoke MFA challenge: %w", err)
		}
		fail(model.AuthEventMFAFailed, fmt.Sprintf("invalid code, challenge revoked after %d attempts", attempts))
		return ErrTokenRevoked
	}
	fail(model.AuthEventMFAFailed, fmt.Sprintf("invalid code (%d of %d)", count, s.cfg.MaxFailedLogins))
	return ErrInvalidMFACode
}

// recordSuccess clears the failure counter and lock and stamps the login
func (s *Service) recordSuccess(user *model.User, now time.Time) error {
	if err := s.stores.Users.RecordSuccessfulLogin(user.ID, now); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	return nil
}

// issueSession opens a session and issues its first token pair
func (s *Service) issueSession(user *model.User, client Client) (*TokenPair, error) {
	now := s.now()
	session := &model.UserSession{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		IPAddress:      client.IP,
		UserAgent:      client.UserAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.cfg.SessionLifetime()),
	}
	if err := s.stores.Sessions.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	audit.Log(audit.SessionEvent{UserID: user.ID, SessionID: session.ID, ClientIP: client.IP, Operation: "create", Success: true})
	return s.issueTokens(user, session.ID)
}

func (s *Service) issueTokens(user *model.User, sessionID string) (*TokenPair, error) {
	now := s.now()
	access, claims, err := s.issuer.Issue(user.ID, sessionID, string(user.Role), user.Username, s.cfg.AccessTTL())
	if err != nil {
		return nil, err
	}
	sid := sessionID
	accessRow := &model.Token{
		ID:        claims.ID,
		UserID:    user.ID,
		SessionID: &sid,
		TokenHash: token.Hash(access),
		TokenType: model.TokenAccess,
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: now,
	}
	if err := s.stores.Tokens.CreateToken(accessRow); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}

	refresh, digest, err := token.NewOpaque()
	if err != nil {
		return nil, err
	}
	refreshRow := &model.Token{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		SessionID: &sid,
		TokenHash: digest,
		TokenType: model.TokenRefresh,
		ExpiresAt: now.Add(s.cfg.RefreshTTL()),
		CreatedAt: now,
	}
	if err := s.stores.Tokens.CreateToken(refreshRow); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int(s.cfg.AccessTTL().Seconds()),
		RefreshExpiresIn: int(s.cfg.RefreshTTL().Seconds()),
		ExpiresAt:        claims.ExpiresAt.Time,
		SessionID:        sessionID,
	}, nil
}

// Refresh rotates a refresh token. Presenting a refresh token that was
// already rotated revokes the whole session.
func (s *Service) Refresh(refreshToken string, client Client) (*TokenPair, error) {
	now := s.now()
	tok, err := s.stores.Tokens.GetTokenByHash(token.Hash(refreshToken))
	if errors.Is(err, store.ErrNotFound) || (err == nil && tok.TokenType != model.TokenRefresh) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if tok.SessionID == nil {
		return nil, ErrInvalidToken
	}
	sessionID := *tok.SessionID

	if tok.Revoked() {
		s.reuseDetected(tok, client, now)
		return nil, ErrTokenRevoked
	}
	if tok.Expired(now) {
		return nil, ErrTokenExpired
	}

	session, err := s.stores.Sessions.GetSession(sessionID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !session.Active(now)) {
		return nil, ErrSessionInactive
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	user, err := s.activeUser(tok.UserID, now)
	if err != nil {
		return nil, err
	}

	revoked, err := s.stores.Tokens.RevokeToken(tok.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if !revoked {
		// Lost a race with another refresh of the same token
		s.reuseDetected(tok, client, now)
		return nil, ErrTokenRevoked
	}

	pair, err := s.issueTokens(user, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.stores.Sessions.TouchSession(sessionID, now); err != nil {
		log.Printf("auth: failed to touch session %s: %v", sessionID, err)
	}
	s.record(logFor(user, model.AuthEventTokenRefresh, client, true, ""), audit.SessionEvent{
		UserID:    user.ID,
		SessionID: sessionID,
		ClientIP:  client.IP,
		Operation: "refresh",
		Success:   true,
	})
	return pair, nil
}

func (s *Service) reuseDetected(tok *model.Token, client Client, now time.Time) {
	sessionID := *tok.SessionID
	if err := s.revokeSession(sessionID, now); err != nil {
		log.Printf("auth: failed to revoke session %s after refresh token reuse: %v", sessionID, err)
	}
	entry := model.AuthLog{
		UserID:    &tok.UserID,
		EventType: model.AuthEventTokenReuse,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Details:   "session " + sessionID + " revoked",
	}
	s.record(entry, audit.SessionEvent{
		UserID:    tok.UserID,
		SessionID: sessionID,
		ClientIP:  client.IP,
		Operation: "reuse-detected",
	})
}

// ValidateAccessToken verifies an access token and returns the identity it
// carries. The role and username come from the current account, so changes
// apply to tokens already issued.
func (s *Service) ValidateAccessToken(raw string) (*identity.Identity, error) {
	claims, err := s.issuer.Parse(raw)
	if errors.Is(err, token.ErrExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	now := s.now()
	tok, err := s.stores.Tokens.GetToken(claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if tok.Revoked() {
		return nil, ErrTokenRevoked
	}

	session, err := s.stores.Sessions.GetSession(claims.SessionID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !session.Active(now)) {
		return nil, ErrSessionInactive
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	user, err := s.activeUser(claims.Subject, now)
	if err != nil {
		return nil, err
	}

	if err := s.stores.Sessions.TouchSession(session.ID, now); err != nil {
		log.Printf("auth: failed to touch session %s: %v", session.ID, err)
	}

	id := identity.FromClaims(claims)
	id.Role = user.Role
	id.Username = user.Username
	return id, nil
}

// Logout revokes a session and every token bound to it
func (s *Service) Logout(sessionID string, client Client) error {
	session, err := s.stores.Sessions.GetSession(sessionID)
	if err != nil {
		return err
	}
	if err := s.revokeSession(sessionID, s.now()); err != nil {
		return err
	}
	s.record(model.AuthLog{
		UserID:    &session.UserID,
		EventType: model.AuthEventLogout,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Success:   true,
	}, audit.SessionEvent{
		UserID:    session.UserID,
		SessionID: sessionID,
		ClientIP:  client.IP,
		Operation: "logout",
		Success:   true,
	})
	return nil
}

// lookupToken finds an unrevoked, unexpired token of the given type by its
// raw value
func (s *Service) lookupToken(raw string, tokenType model.TokenType, now time.Time) (*model.Token, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	tok, err := s.stores.Tokens.GetTokenByHash(token.Hash(raw))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if tok.TokenType != tokenType {
		return nil, ErrInvalidToken
	}
	if tok.Revoked() {
		return nil, ErrTokenRevoked
	}
	if tok.Expired(now) {
		return nil, ErrTokenExpired
	}
	return tok, nil
}

// activeUser loads a user that may currently sign in
func (s *Service) activeUser(userID string, now time.Time) (*model.User, error) {
	user, err := s.stores.Users.GetUser(userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	if user.IsLocked(now) {
		return nil, ErrAccountLocked
	}
	return user, nil
}
