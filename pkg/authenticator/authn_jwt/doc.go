// Package authn_jwt verifies ID tokens from an external OAuth/OIDC provider.
//
// Signing keys come from one of:
//
//   - hmac_secret: a shared secret, HS256/384/512
//   - jwks_uri: an RSA JSON Web Key Set
//   - issuer: OIDC discovery at {issuer}/.well-known/openid-configuration
//
// Fetched keys are cached for five minutes; an unknown kid forces a refetch.
// The token must carry exp and sub, and must match the configured issuer
// and audience when those are set.
package authn_jwt
