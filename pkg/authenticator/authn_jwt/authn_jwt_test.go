package authn_jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasad-erp/hasad/pkg/authenticator"
	"github.com/hasad-erp/hasad/pkg/config"
)

func TestAuthenticator_Name(t *testing.T) {
	auth := New(config.OAuthProvider{Name: "google"})
	assert.Equal(t, "authn-jwt/google", auth.Name())
}

func signHMAC(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthenticate_HMAC(t *testing.T) {
	auth := New(config.OAuthProvider{
		Name:       "farmid",
		Issuer:     "https://id.example.org",
		Audience:   "hasad",
		HMACSecret: "shared-secret",
	})

	valid := jwt.MapClaims{
		"iss":   "https://id.example.org",
		"aud":   "hasad",
		"sub":   "ext-42",
		"email": "grower@example.org",
		"name":  "Grower",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: signHMAC(t, "shared-secret", valid)},
		{name: "empty", token: "", wantErr: true},
		{name: "wrong secret", token: signHMAC(t, "other", valid), wantErr: true},
		{
			name: "wrong audience",
			token: signHMAC(t, "shared-secret", jwt.MapClaims{
				"iss": "https://id.example.org", "aud": "someone-else", "sub": "x",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantErr: true,
		},
		{
			name: "expired",
			token: signHMAC(t, "shared-secret", jwt.MapClaims{
				"iss": "https://id.example.org", "aud": "hasad", "sub": "x",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantErr: true,
		},
		{
			name: "missing subject",
			token: signHMAC(t, "shared-secret", jwt.MapClaims{
				"iss": "https://id.example.org", "aud": "hasad",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := auth.Authenticate(context.Background(), authenticator.AuthenticatorInput{
				Credentials: []byte(tt.token),
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, authenticator.ErrInvalidCredentials)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "farmid", subject.Provider)
			assert.Equal(t, "ext-42", subject.ID)
			assert.Equal(t, "grower@example.org", subject.Email)
		})
	}
}

func jwkFor(kid string, key *rsa.PublicKey) map[string]string {
	return map[string]string{
		"kid": kid,
		"kty": "RSA",
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}

func TestAuthenticate_DiscoveredJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			_ = json.NewEncoder(w).Encode(map[string]string{"jwks_uri": srv.URL + "/keys"})
		case "/keys":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"keys": []map[string]string{jwkFor("k1", &key.PublicKey)},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	auth := New(config.OAuthProvider{Name: "oidc", Issuer: srv.URL})
	require.NoError(t, auth.Status(context.Background()))

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": srv.URL,
		"sub": "rsa-user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	subject, err := auth.Authenticate(context.Background(), authenticator.AuthenticatorInput{Credentials: []byte(signed)})
	require.NoError(t, err)
	assert.Equal(t, "rsa-user", subject.ID)

	token.Header["kid"] = "unknown"
	signed, err = token.SignedString(key)
	require.NoError(t, err)
	_, err = auth.Authenticate(context.Background(), authenticator.AuthenticatorInput{Credentials: []byte(signed)})
	assert.ErrorIs(t, err, authenticator.ErrInvalidCredentials)
}

func TestStatus_NoKeySource(t *testing.T) {
	auth := New(config.OAuthProvider{Name: "broken"})
	assert.Error(t, auth.Status(context.Background()))
}

func TestParseRSAPublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwk := jwkFor("k", &key.PublicKey)

	parsed, err := parseRSAPublicKey(jwk["n"], jwk["e"])
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.E, parsed.E)
	assert.Equal(t, 0, key.PublicKey.N.Cmp(parsed.N))
}
