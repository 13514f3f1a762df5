package endpoints

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasad-erp/hasad/pkg/auth"
	"github.com/hasad-erp/hasad/pkg/model"
)

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/auth/register", "", map[string]string{
		"username": "salma",
		"email":    "salma@example.org",
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = ts.do(t, "POST", "/auth/register", "", map[string]string{
		"username": "salma",
		"email":    "other@example.org",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, "POST", "/auth/register", "", map[string]string{
		"username": "khalid",
		"email":    "khalid@example.org",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "POST", "/auth/login", "", map[string]string{"login": "salma", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	access := ts.login(t, "salma")
	rec = ts.do(t, "GET", "/auth/whoami", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"salma"`)
	assert.Contains(t, rec.Body.String(), `"client_ip":"192.0.2.10"`)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/auth/whoami", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authorization missing", errorOf(t, rec))

	rec = ts.do(t, "GET", "/auth/whoami", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.user(t, "omar", model.RoleUser)

	rec := ts.do(t, "POST", "/auth/login", "", map[string]string{"login": "omar", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	var login auth.LoginResult
	decode(t, rec, &login)

	rec = ts.do(t, "POST", "/auth/refresh", "", map[string]string{"refresh_token": login.Tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair auth.TokenPair
	decode(t, rec, &pair)
	assert.NotEqual(t, login.Tokens.RefreshToken, pair.RefreshToken)
	assert.Equal(t, login.Tokens.SessionID, pair.SessionID)

	// the rotated refresh token cannot be used again
	rec = ts.do(t, "POST", "/auth/refresh", "", map[string]string{"refresh_token": login.Tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	access := ts.login(t, "omar")
	rec = ts.do(t, "POST", "/auth/logout", access, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, "GET", "/auth/whoami", access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token revoked", errorOf(t, rec))
}

func TestSessions(t *testing.T) {
	ts := newTestServer(t)
	_, first := ts.user(t, "huda", model.RoleUser)
	second := ts.login(t, "huda")

	rec := ts.do(t, "GET", "/auth/sessions", first, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []model.UserSession
	decode(t, rec, &sessions)
	assert.Len(t, sessions, 2)

	rec = ts.do(t, "DELETE", "/auth/sessions", first, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revoked":1}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, "GET", "/auth/whoami", second, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, "GET", "/auth/whoami", first, nil).Code)
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t)
	_, access := ts.user(t, "yusuf", model.RoleUser)

	rec := ts.do(t, "PUT", "/auth/password", access, map[string]string{
		"current_password": "not-it",
		"new_password":     "zaitoun-2025",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, "PUT", "/auth/password", access, map[string]string{
		"current_password": testPassword,
		"new_password":     testPassword,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "PUT", "/auth/password", access, map[string]string{
		"current_password": testPassword,
		"new_password":     "zaitoun-2025",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, "POST", "/auth/login", "", map[string]string{"login": "yusuf", "password": "zaitoun-2025"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordReset(t *testing.T) {
	ts := newTestServer(t)
	ts.user(t, "layla", model.RoleUser)

	// unknown addresses look the same to the caller
	rec := ts.do(t, "POST", "/auth/password/forgot", "", map[string]string{"email": "nobody@example.org"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, ts.reset)

	rec = ts.do(t, "POST", "/auth/password/forgot", "", map[string]string{"email": "layla@example.org"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	resetToken := ts.reset["layla@example.org"]
	require.NotEmpty(t, resetToken)
	assert.NotContains(t, rec.Body.String(), resetToken)

	rec = ts.do(t, "POST", "/auth/password/reset", "", map[string]string{"token": resetToken, "new_password": "tamr-hijazi-1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, "POST", "/auth/password/reset", "", map[string]string{"token": resetToken, "new_password": "tamr-hijazi-2"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, "POST", "/auth/login", "", map[string]string{"login": "layla", "password": "tamr-hijazi-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLockoutAndAdminUnlock(t *testing.T) {
	ts := newTestServer(t)
	userID, _ := ts.user(t, "tariq", model.RoleUser)
	_, admin := ts.user(t, "root", model.RoleAdmin)

	var rec = ts.do(t, "POST", "/auth/login", "", map[string]string{"login": "tariq", "password": "bad"})
	for i := 1; i < ts.Config.MaxFailedLogins; i++ {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		rec = ts.do(t, "POST", "/auth/login", "", map[string]string{"login": "tariq", "password": "bad"})
	}
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, "POST", "/auth/login", "", map[string]string{"login": "tariq", "password": testPassword})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, "POST", "/admin/users/"+userID+"/unlock", admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ts.login(t, "tariq")
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	userID, access := ts.user(t, "nour", model.RoleUser)
	_, admin := ts.user(t, "root", model.RoleAdmin)

	rec := ts.do(t, "GET", "/admin/users", access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, "GET", "/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []model.User
	decode(t, rec, &users)
	assert.Len(t, users, 2)

	rec = ts.do(t, "PUT", "/admin/users/"+userID+"/role", admin, map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "PUT", "/admin/users/"+userID+"/role", admin, map[string]string{"role": "manager"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// role changes apply to tokens already issued
	rec = ts.do(t, "GET", "/auth/whoami", access, nil)
	assert.Contains(t, rec.Body.String(), `"role":"manager"`)

	rec = ts.do(t, "POST", "/admin/users", admin, map[string]string{
		"username": "farid",
		"email":    "farid@example.org",
		"password": testPassword,
		"role":     "viewer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"role":"viewer"`)

	rec = ts.do(t, "POST", "/admin/users/"+userID+"/deactivate", admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, "GET", "/auth/whoami", access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, "GET", "/admin/users/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, "GET", "/admin/logs?limit=5", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []model.AuthLog
	decode(t, rec, &logs)
	assert.Len(t, logs, 5)
}

func TestMFAEndpoints(t *testing.T) {
	ts := newTestServer(t)
	_, access := ts.user(t, "rania", model.RoleUser)

	rec := ts.do(t, "GET", "/auth/mfa", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enabled":false`)

	rec = ts.do(t, "POST", "/auth/mfa/disable", access, map[string]string{"code": "123456"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, "POST", "/auth/mfa/setup", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var setup auth.MFASetup
	decode(t, rec, &setup)
	assert.NotEmpty(t, setup.Secret)
	assert.Len(t, setup.BackupCodes, ts.Config.MFABackupCodes)

	rec = ts.do(t, "POST", "/auth/mfa/enable", access, map[string]string{"code": "000000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
