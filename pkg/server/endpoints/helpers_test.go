package endpoints

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/auth"
	"github.com/hasad-erp/hasad/pkg/authenticator/authn"
	"github.com/hasad-erp/hasad/pkg/cipher"
	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/ledger"
	"github.com/hasad-erp/hasad/pkg/memory"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server"
	"github.com/hasad-erp/hasad/pkg/server/store/memstore"
	"github.com/hasad-erp/hasad/pkg/taxonomy"
	"github.com/hasad-erp/hasad/pkg/token"
)

func TestMain(m *testing.M) {
	authn.Cost = bcrypt.MinCost
	audit.SetEnabled(false)
	os.Exit(m.Run())
}

const testPassword = "nakheel-2024"

// testServer is a fully wired server over an in-memory store
type testServer struct {
	*server.Server
	store *memstore.Store

	mu    sync.Mutex
	reset map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Default()
	st := memstore.New()

	issuer, err := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	key, err := cipher.RandomBytes(cipher.KeySize)
	require.NoError(t, err)
	c, err := cipher.NewSymmetric(key)
	require.NoError(t, err)

	authSvc, err := auth.New(auth.Stores{
		Users:    st,
		Tokens:   st,
		Sessions: st,
		MFA:      st,
		AuthLogs: st,
		OAuth:    st,
	}, auth.Options{Config: cfg, Issuer: issuer, Cipher: c})
	require.NoError(t, err)
	memorySvc, err := memory.New(st, memory.Options{Config: cfg})
	require.NoError(t, err)
	ledgerSvc, err := ledger.New(st, ledger.Options{Config: cfg})
	require.NoError(t, err)

	ts := &testServer{store: st, reset: map[string]string{}}
	ts.Server = server.NewServer(cfg, server.Services{
		Auth:        authSvc,
		Memory:      memorySvc,
		Ledger:      ledgerSvc,
		Taxonomy:    taxonomy.New(st, nil),
		HealthStore: st,
		PasswordResetDelivery: func(email, token string) {
			ts.mu.Lock()
			defer ts.mu.Unlock()
			ts.reset[email] = token
		},
	}, "127.0.0.1", "0")
	RegisterAll(ts.Server)
	return ts
}

// do sends a request through the router. body is JSON encoded unless it is
// a string.
func (ts *testServer) do(t *testing.T, method, path, accessToken string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:40000"
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rec := httptest.NewRecorder()
	ts.Router.ServeHTTP(rec, req)
	return rec
}

// user registers an account with role and returns its id and an access
// token issued after the role was set
func (ts *testServer) user(t *testing.T, username string, role model.Role) (string, string) {
	t.Helper()

	rec := ts.do(t, "POST", "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.org",
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var u model.User
	decode(t, rec, &u)

	if role != model.RoleUser {
		require.NoError(t, ts.Auth.SetUserRole("", u.ID, role))
	}
	return u.ID, ts.login(t, username)
}

func (ts *testServer) login(t *testing.T, username string) string {
	t.Helper()

	rec := ts.do(t, "POST", "/auth/login", "", map[string]string{"login": username, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res auth.LoginResult
	decode(t, rec, &res)
	require.NotNil(t, res.Tokens)
	return res.Tokens.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}
