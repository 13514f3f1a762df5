// Package token issues and verifies the tokens handed to API clients.
//
// Access tokens are short-lived HS256 JWTs whose jti is recorded in the
// tokens table so they can be revoked before they expire. Refresh, password
// reset and MFA challenge tokens are opaque random strings; the server keeps
// only their SHA-256 digest.
package token
