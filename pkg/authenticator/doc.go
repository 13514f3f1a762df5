// Package authenticator defines the interface for external identity
// authenticators used to sign in with, or link, OAuth/OIDC accounts.
//
// # Authenticator Interface
//
// All authenticators implement the Authenticator interface:
//
//	type Authenticator interface {
//	    Name() string
//	    Authenticate(ctx context.Context, input AuthenticatorInput) (*Subject, error)
//	    Status(ctx context.Context) error
//	}
//
// # Subpackages
//
//   - authn: local password hashing and policy - see [github.com/hasad-erp/hasad/pkg/authenticator/authn]
//   - authn-jwt: ID token verification for one configured provider - see [github.com/hasad-erp/hasad/pkg/authenticator/authn_jwt]
//
// # Configuration
//
// One authn-jwt authenticator is registered and enabled per entry of
// oauth_providers in hasad.yml.
package authenticator
