// Package identity provides the authenticated identity of a request.
//
// An Identity combines verified access token claims (user, role, session)
// with request details such as the client IP. The bearer middleware stores it
// in the request context:
//
//	ctx = identity.Set(ctx, id)
//	id, ok := identity.Get(ctx)
//
// A nil *Identity is a valid anonymous caller; its methods are nil-safe.
package identity
