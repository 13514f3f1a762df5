package authn_jwt

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hasad-erp/hasad/pkg/authenticator"
	"github.com/hasad-erp/hasad/pkg/config"
)

// jwksTTL is how long fetched signing keys are trusted before a refetch
const jwksTTL = 5 * time.Minute

// Authenticator verifies ID tokens issued by one OAuth/OIDC provider
type Authenticator struct {
	config     config.OAuthProvider
	httpClient *http.Client
	jwksCache  *jwksCache
	now        func() time.Time
}

// jwksCache caches JWKS keys
type jwksCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// New creates an authenticator for the provider
func New(provider config.OAuthProvider) *Authenticator {
	return &Authenticator{
		config:     provider,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		jwksCache: &jwksCache{
			keys: make(map[string]*rsa.PublicKey),
		},
		now: time.Now,
	}
}

// NameFor returns the registry name of the provider's authenticator
func NameFor(provider string) string {
	return "authn-jwt/" + provider
}

// Name returns the authenticator name
func (a *Authenticator) Name() string {
	return NameFor(a.config.Name)
}

// Authenticate validates an ID token and returns the subject it asserts
func (a *Authenticator) Authenticate(ctx context.Context, input authenticator.AuthenticatorInput) (*authenticator.Subject, error) {
	tokenString := strings.TrimSpace(string(input.Credentials))
	if tokenString == "" {
		return nil, fmt.Errorf("%w: ID token is required", authenticator.ErrInvalidCredentials)
	}

	token, err := a.parseAndValidateToken(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authenticator.ErrInvalidCredentials, err)
	}

	claims, _ := token.Claims.(jwt.MapClaims)
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: no subject in token", authenticator.ErrInvalidCredentials)
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &authenticator.Subject{
		Provider: a.config.Name,
		ID:       sub,
		Email:    email,
		Name:     name,
	}, nil
}

// parseAndValidateToken parses and validates the JWT token
func (a *Authenticator) parseAndValidateToken(ctx context.Context, tokenString string) (*jwt.Token, error) {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.config.Audience))
	}

	if a.config.HMACSecret != "" {
		opts = append(opts, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(a.config.HMACSecret), nil
		}, opts...)
	}

	if err := a.refreshJWKSIfNeeded(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch signing keys: %w", err)
	}

	opts = append(opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("missing kid in token header")
		}

		a.jwksCache.mu.RLock()
		key, ok := a.jwksCache.keys[kid]
		a.jwksCache.mu.RUnlock()
		if !ok {
			// The provider may have rotated keys
			if err := a.refreshJWKS(ctx); err != nil {
				return nil, err
			}
			a.jwksCache.mu.RLock()
			key, ok = a.jwksCache.keys[kid]
			a.jwksCache.mu.RUnlock()
			if !ok {
				return nil, fmt.Errorf("key %s not found", kid)
			}
		}
		return key, nil
	}, opts...)
}

// refreshJWKSIfNeeded refreshes JWKS if cache is expired
func (a *Authenticator) refreshJWKSIfNeeded(ctx context.Context) error {
	a.jwksCache.mu.RLock()
	expired := a.now().After(a.jwksCache.expiresAt)
	a.jwksCache.mu.RUnlock()

	if expired {
		return a.refreshJWKS(ctx)
	}
	return nil
}

func (a *Authenticator) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// refreshJWKS fetches fresh JWKS, discovering the URI from the issuer when
// none is configured
func (a *Authenticator) refreshJWKS(ctx context.Context) error {
	jwksURI := a.config.JWKSURI

	if jwksURI == "" && a.config.Issuer != "" {
		discoveryURL := strings.TrimSuffix(a.config.Issuer, "/") + "/.well-known/openid-configuration"
		body, err := a.get(ctx, discoveryURL)
		if err != nil {
			return fmt.Errorf("failed to fetch OIDC discovery: %w", err)
		}
		var discovery struct {
			JWKSURI string `json:"jwks_uri"`
		}
		if err := json.Unmarshal(body, &discovery); err != nil {
			return fmt.Errorf("failed to parse OIDC discovery: %w", err)
		}
		jwksURI = discovery.JWKSURI
	}

	if jwksURI == "" {
		return errors.New("no JWKS URI configured")
	}

	body, err := a.get(ctx, jwksURI)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	return a.parseJWKSBody(body)
}

// parseJWKSBody parses JWKS JSON and populates the key cache
func (a *Authenticator) parseJWKSBody(body []byte) error {
	var jwks struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("failed to parse JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, keyData := range jwks.Keys {
		var keyInfo struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		}
		if err := json.Unmarshal(keyData, &keyInfo); err != nil {
			continue
		}
		if keyInfo.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(keyInfo.N, keyInfo.E)
		if err != nil {
			continue
		}
		keys[keyInfo.Kid] = pubKey
	}

	a.jwksCache.mu.Lock()
	a.jwksCache.keys = keys
	a.jwksCache.expiresAt = a.now().Add(jwksTTL)
	a.jwksCache.mu.Unlock()

	return nil
}

// Status checks that signing keys can be loaded
func (a *Authenticator) Status(ctx context.Context) error {
	if a.config.HMACSecret != "" {
		return nil
	}
	return a.refreshJWKS(ctx)
}

// parseRSAPublicKey parses an RSA public key from JWK components
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := jwt.NewParser().DecodeSegment(nBase64)
	if err != nil {
		return nil, err
	}
	eBytes, err := jwt.NewParser().DecodeSegment(eBase64)
	if err != nil {
		return nil, err
	}

	var e int
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
