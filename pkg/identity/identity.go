package identity

import (
	"context"
	"net"
	"time"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/token"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// Key is the context key for Identity.
	Key ContextKey = "identity"
)

// Identity represents the authenticated identity for a request.
// It combines token claims with request-specific context.
type Identity struct {
	// Token claims
	UserID    string
	Username  string
	Role      model.Role
	SessionID string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Request context
	RemoteIP  net.IP
	UserAgent string
}

// FromClaims creates an Identity from verified access token claims.
func FromClaims(c *token.Claims) *Identity {
	id := &Identity{
		UserID:    c.Subject,
		Username:  c.Name,
		Role:      model.Role(c.Role),
		SessionID: c.SessionID,
		TokenID:   c.ID,
	}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}

// WithRemoteIP sets the remote IP address.
func (i *Identity) WithRemoteIP(ip net.IP) *Identity {
	i.RemoteIP = ip
	return i
}

// WithUserAgent sets the client user agent.
func (i *Identity) WithUserAgent(ua string) *Identity {
	i.UserAgent = ua
	return i
}

// IsAdmin reports whether the identity has the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == model.RoleAdmin
}

// HasRole reports whether the identity's role is at least min.
func (i *Identity) HasRole(min model.Role) bool {
	return i != nil && i.Role.AtLeast(min)
}

// Authenticated reports whether the identity belongs to a logged in user.
// A nil Identity is anonymous.
func (i *Identity) Authenticated() bool {
	return i != nil && i.UserID != ""
}

// IP returns the remote IP as a string, or an empty string.
func (i *Identity) IP() string {
	if i == nil || i.RemoteIP == nil {
		return ""
	}
	return i.RemoteIP.String()
}

// Get retrieves Identity from context.
func Get(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(Key).(*Identity)
	return id, ok
}

// Set stores Identity in context.
func Set(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, Key, id)
}
