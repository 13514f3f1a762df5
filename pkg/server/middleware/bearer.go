package middleware

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/hasad-erp/hasad/pkg/auth"
	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
)

// TokenValidator verifies access tokens
type TokenValidator interface {
	ValidateAccessToken(raw string) (*identity.Identity, error)
}

// BearerAuthenticator is middleware that validates bearer access tokens
type BearerAuthenticator struct {
	Validator TokenValidator
	Config    *config.HasadConfig
}

// NewBearerAuthenticator creates a new bearer authenticator middleware
func NewBearerAuthenticator(v TokenValidator, cfg *config.HasadConfig) *BearerAuthenticator {
	return &BearerAuthenticator{Validator: v, Config: cfg}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="hasad"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// bearerToken extracts the token from an Authorization header
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
		return "", false
	}
	return strings.TrimSpace(tok), true
}

func (b *BearerAuthenticator) authenticate(r *http.Request, raw string) (*identity.Identity, error) {
	id, err := b.Validator.ValidateAccessToken(raw)
	if err != nil {
		return nil, err
	}
	id.WithRemoteIP(ClientIP(r, b.Config)).WithUserAgent(r.UserAgent())
	return id, nil
}

func message(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, auth.ErrTokenRevoked), errors.Is(err, auth.ErrSessionInactive):
		return "Token revoked"
	case errors.Is(err, auth.ErrAccountDisabled), errors.Is(err, auth.ErrAccountLocked):
		return "Account unavailable"
	}
	return "Invalid token"
}

// Middleware rejects requests without a valid access token and stores the
// caller's identity in the request context
func (b *BearerAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			if r.Header.Get("Authorization") == "" {
				unauthorized(w, "Authorization missing")
			} else {
				unauthorized(w, "Malformed authorization header")
			}
			return
		}
		id, err := b.authenticate(r, raw)
		if err != nil {
			unauthorized(w, message(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.Set(r.Context(), id)))
	})
}

// Optional authenticates the caller when a token is present and lets
// anonymous requests through. A bad token is still rejected.
func (b *BearerAuthenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			b.Anonymous(next).ServeHTTP(w, r)
			return
		}
		b.Middleware(next).ServeHTTP(w, r)
	})
}

// Anonymous stores an identity carrying only the client address and user
// agent. Public routes such as login use it; any Authorization header is
// ignored.
func (b *BearerAuthenticator) Anonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		anon := &identity.Identity{RemoteIP: ClientIP(r, b.Config), UserAgent: r.UserAgent()}
		next.ServeHTTP(w, r.WithContext(identity.Set(r.Context(), anon)))
	})
}

// RequireRole rejects callers below role. It must run after Middleware.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := identity.Get(r.Context())
			if !id.Authenticated() || !id.HasRole(role) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the request's client address. X-Forwarded-For is only
// honoured when the direct peer is a trusted proxy; the rightmost untrusted
// hop is the client.
func ClientIP(r *http.Request, cfg *config.HasadConfig) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil || cfg == nil || !cfg.IsTrustedProxy(peer.String()) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(hops[i]))
		if ip == nil {
			break
		}
		if !cfg.IsTrustedProxy(ip.String()) {
			return ip
		}
	}
	return peer
}
