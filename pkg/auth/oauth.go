package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/authenticator"
	"github.com/hasad-erp/hasad/pkg/authenticator/authn_jwt"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// verifyIDToken checks idToken with the named provider's authenticator
func (s *Service) verifyIDToken(ctx context.Context, provider, idToken, clientIP string) (*authenticator.Subject, error) {
	a, err := s.providers.Lookup(authn_jwt.NameFor(provider))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	subject, err := a.Authenticate(ctx, authenticator.AuthenticatorInput{
		Credentials: []byte(idToken),
		ClientIP:    clientIP,
	})
	if err != nil {
		return nil, err
	}
	return subject, nil
}

// LinkOAuthAccount attaches the identity asserted by idToken to the user.
// Linking the same identity again is a no-op; an identity linked to another
// user is a conflict.
func (s *Service) LinkOAuthAccount(ctx context.Context, userID, provider, idToken string, client Client) (*model.OAuthAccount, error) {
	subject, err := s.verifyIDToken(ctx, provider, idToken, client.IP)
	if err != nil {
		return nil, err
	}

	existing, err := s.stores.OAuth.FindOAuthAccount(provider, subject.ID)
	switch {
	case err == nil && existing.UserID == userID:
		return existing, nil
	case err == nil:
		return nil, fmt.Errorf("%w: identity is linked to another account", ErrConflict)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	account := &model.OAuthAccount{
		ID:             uuid.NewString(),
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: subject.ID,
		Email:          subject.Email,
		CreatedAt:      s.now(),
	}
	sealed, err := s.cipher.Encrypt([]byte(account.ID), []byte(idToken))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt provider token: %w", err)
	}
	account.AccessToken = sealed

	if err := s.stores.OAuth.CreateOAuthAccount(account); err != nil {
		return nil, err
	}
	s.record(model.AuthLog{
		UserID:    &userID,
		EventType: model.AuthEventOAuthLinked,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Success:   true,
		Details:   provider,
	}, audit.AccountEvent{
		ActorID:   userID,
		UserID:    userID,
		ClientIP:  client.IP,
		Operation: "oauth-link",
		Detail:    provider,
		Success:   true,
	})
	return account, nil
}

// UnlinkOAuthAccount removes one of the user's own links
func (s *Service) UnlinkOAuthAccount(userID, accountID string, client Client) error {
	account, err := s.stores.OAuth.GetOAuthAccount(accountID)
	if err != nil {
		return err
	}
	if account.UserID != userID {
		return ErrNotFound
	}
	if err := s.stores.OAuth.DeleteOAuthAccount(accountID); err != nil {
		return err
	}
	s.record(model.AuthLog{
		UserID:    &userID,
		EventType: model.AuthEventOAuthUnlinked,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Success:   true,
		Details:   account.Provider,
	}, audit.AccountEvent{
		ActorID:   userID,
		UserID:    userID,
		ClientIP:  client.IP,
		Operation: "oauth-unlink",
		Detail:    account.Provider,
		Success:   true,
	})
	return nil
}

// ListOAuthAccounts returns the user's linked identities
func (s *Service) ListOAuthAccounts(userID string) ([]model.OAuthAccount, error) {
	return s.stores.OAuth.ListOAuthAccounts(userID)
}

// LoginWithOAuth signs in the user linked to the identity asserted by
// idToken. The provider stands in for the password and second factor.
func (s *Service) LoginWithOAuth(ctx context.Context, provider, idToken string, client Client) (*LoginResult, error) {
	method := "oauth/" + provider
	subject, err := s.verifyIDToken(ctx, provider, idToken, client.IP)
	if err != nil {
		audit.Log(audit.AuthenticateEvent{ClientIP: client.IP, Method: method, ErrorMessage: err.Error()})
		return nil, err
	}

	account, err := s.stores.OAuth.FindOAuthAccount(provider, subject.ID)
	if errors.Is(err, store.ErrNotFound) {
		audit.Log(audit.AuthenticateEvent{Username: subject.Email, ClientIP: client.IP, Method: method, ErrorMessage: "not linked"})
		return nil, ErrOAuthNotLinked
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	user, err := s.stores.Users.GetUser(account.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	if user.IsLocked(now) {
		return nil, ErrAccountLocked
	}
	if err := s.stores.Users.RecordSuccessfulLogin(user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLoginAt = &now

	pair, err := s.issueSession(user, client)
	if err != nil {
		return nil, err
	}
	s.record(logFor(user, model.AuthEventOAuthLogin, client, true, provider), audit.AuthenticateEvent{
		UserID:   user.ID,
		Username: user.Username,
		ClientIP: client.IP,
		Method:   method,
		Success:  true,
	})
	return &LoginResult{Tokens: pair, User: user}, nil
}
