package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultIssuer is the iss claim of access tokens
const DefaultIssuer = "hasad"

var (
	ErrExpired = errors.New("token expired")
	ErrInvalid = errors.New("token invalid")
)

// Claims are the claims carried by an access token
type Claims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 access tokens
type Issuer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewIssuer creates an Issuer. The key must be at least 32 bytes.
func NewIssuer(key []byte) (*Issuer, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("token signing key must be at least 32 bytes, got %d", len(key))
	}
	return &Issuer{key: key, issuer: DefaultIssuer, now: time.Now}, nil
}

// WithClock replaces the time source, for tests
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs an access token for the subject bound to sessionID.
// The returned claims carry the generated jti.
func (i *Issuer) Issue(subject, sessionID, role, name string, ttl time.Duration) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		SessionID: sessionID,
		Role:      role,
		Name:      name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature, issuer and expiry of an access token
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Subject == "" || claims.SessionID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing required claims", ErrInvalid)
	}
	return claims, nil
}

// NewOpaque returns a random URL-safe token and its digest. Refresh, reset and
// MFA challenge tokens are opaque; only the digest is stored.
func NewOpaque() (raw string, digest string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, Hash(raw), nil
}

// Hash returns the hex SHA-256 digest of a raw token
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
