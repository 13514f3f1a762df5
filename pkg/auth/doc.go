// Package auth implements the account lifecycle: registration, password
// login with lockout, TOTP second factor, sessions with rotating refresh
// tokens, password reset, linked OAuth identities and account
// administration.
//
// Every security relevant step writes an AuthLog row through the store and
// an event to the audit log.
package auth
