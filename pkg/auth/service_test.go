package auth

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/authenticator"
	"github.com/hasad-erp/hasad/pkg/authenticator/authn"
	"github.com/hasad-erp/hasad/pkg/authenticator/authn_jwt"
	"github.com/hasad-erp/hasad/pkg/cipher"
	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store/memstore"
	"github.com/hasad-erp/hasad/pkg/token"
)

func TestMain(m *testing.M) {
	authn.Cost = bcrypt.MinCost
	audit.SetEnabled(false)
	os.Exit(m.Run())
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const oauthSecret = "farm-id-shared-secret"

type fixture struct {
	svc   *Service
	store *memstore.Store
	clock *testClock
	cfg   *config.HasadConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	cfg := config.Default()

	issuer, err := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	issuer.WithClock(clock.Now)

	key, err := cipher.RandomBytes(cipher.KeySize)
	require.NoError(t, err)
	c, err := cipher.NewSymmetric(key)
	require.NoError(t, err)

	providers := authenticator.NewRegistry()
	farmID := authn_jwt.New(config.OAuthProvider{Name: "farmid", Audience: "hasad", HMACSecret: oauthSecret})
	providers.Register(farmID)
	require.NoError(t, providers.Enable(farmID.Name()))

	st := memstore.New()
	svc, err := New(Stores{
		Users:    st,
		Tokens:   st,
		Sessions: st,
		MFA:      st,
		AuthLogs: st,
		OAuth:    st,
	}, Options{Config: cfg, Issuer: issuer, Cipher: c, Providers: providers, Now: clock.Now})
	require.NoError(t, err)

	return &fixture{svc: svc, store: st, clock: clock, cfg: cfg}
}

func (f *fixture) register(t *testing.T, username string) *model.User {
	t.Helper()
	user, err := f.svc.Register(RegisterInput{
		Username: username,
		Email:    username + "@example.org",
		Password: "zaitoun2024",
	}, Client{IP: "10.0.0.1"})
	require.NoError(t, err)
	return user
}

func (f *fixture) login(t *testing.T, login, password string) *LoginResult {
	t.Helper()
	res, err := f.svc.Login(LoginInput{Login: login, Password: password, IP: "10.0.0.1"})
	require.NoError(t, err)
	return res
}

func (f *fixture) logTypes(t *testing.T, userID string) []model.AuthEventType {
	t.Helper()
	logs, err := f.store.ListAuthLogs(userID, 100)
	require.NoError(t, err)
	types := make([]model.AuthEventType, 0, len(logs))
	for _, l := range logs {
		types = append(types, l.EventType)
	}
	return types
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Stores{}, Options{})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	user := f.register(t, "salem")
	assert.Equal(t, model.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "zaitoun2024", user.PasswordHash)
	assert.NoError(t, authn.Compare(user.PasswordHash, "zaitoun2024"))

	tests := []struct {
		name    string
		input   RegisterInput
		wantErr error
	}{
		{
			name:    "duplicate username",
			input:   RegisterInput{Username: "SALEM", Email: "other@example.org", Password: "zaitoun2024"},
			wantErr: ErrConflict,
		},
		{
			name:    "duplicate email",
			input:   RegisterInput{Username: "salem2", Email: "Salem@Example.org", Password: "zaitoun2024"},
			wantErr: ErrConflict,
		},
		{
			name:    "short username",
			input:   RegisterInput{Username: "ab", Email: "ab@example.org", Password: "zaitoun2024"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "bad characters",
			input:   RegisterInput{Username: "سالم", Email: "s@example.org", Password: "zaitoun2024"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "bad email",
			input:   RegisterInput{Username: "layla", Email: "not-an-email", Password: "zaitoun2024"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "weak password",
			input:   RegisterInput{Username: "layla", Email: "layla@example.org", Password: "onlyletters"},
			wantErr: ErrWeakPassword,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(tt.input, Client{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoginLocksAccountAfterFailedAttempts(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")

	for i := 1; i < f.cfg.MaxFailedLogins; i++ {
		_, err := f.svc.Login(LoginInput{Login: "salem", Password: "wrong-1"})
		assert.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i)
	}

	_, err := f.svc.Login(LoginInput{Login: "salem", Password: "wrong-1"})
	assert.ErrorIs(t, err, ErrAccountLocked)

	// The right password does not help while locked
	_, err = f.svc.Login(LoginInput{Login: "salem", Password: "zaitoun2024"})
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Contains(t, f.logTypes(t, user.ID), model.AuthEventAccountLocked)

	f.clock.Advance(f.cfg.Lockout() + time.Second)
	res := f.login(t, "salem@example.org", "zaitoun2024")
	require.NotNil(t, res.Tokens)

	stored, err := f.store.GetUser(user.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginUnknownAndDisabledUsers(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")

	_, err := f.svc.Login(LoginInput{Login: "nobody", Password: "zaitoun2024"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	logs, err := f.store.ListAuthLogs("", 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, model.AuthEventLoginFailed, logs[0].EventType)
	assert.Equal(t, "nobody", logs[0].Username)
	assert.Nil(t, logs[0].UserID)

	require.NoError(t, f.svc.SetUserActive("admin", user.ID, false))
	_, err = f.svc.Login(LoginInput{Login: "salem", Password: "zaitoun2024"})
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestValidateAccessToken(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")
	res := f.login(t, "salem", "zaitoun2024")

	id, err := f.svc.ValidateAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, "salem", id.Username)
	assert.Equal(t, model.RoleUser, id.Role)
	assert.Equal(t, res.Tokens.SessionID, id.SessionID)

	// Role changes apply to tokens already issued
	require.NoError(t, f.svc.SetUserRole("admin", user.ID, model.RoleManager))
	id, err = f.svc.ValidateAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, id.Role)

	_, err = f.svc.ValidateAccessToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	f := newFixture(t)
	f.register(t, "salem")
	res := f.login(t, "salem", "zaitoun2024")

	f.clock.Advance(f.cfg.AccessTTL() + time.Second)
	_, err := f.svc.ValidateAccessToken(res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestLogoutRevokesTokens(t *testing.T) {
	f := newFixture(t)
	f.register(t, "salem")
	res := f.login(t, "salem", "zaitoun2024")

	require.NoError(t, f.svc.Logout(res.Tokens.SessionID, Client{}))

	_, err := f.svc.ValidateAccessToken(res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = f.svc.Refresh(res.Tokens.RefreshToken, Client{})
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")
	res := f.login(t, "salem", "zaitoun2024")

	f.clock.Advance(time.Minute)
	pair, err := f.svc.Refresh(res.Tokens.RefreshToken, Client{})
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)
	assert.Equal(t, res.Tokens.SessionID, pair.SessionID)

	_, err = f.svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)

	// Replaying the rotated token kills the session
	_, err = f.svc.Refresh(res.Tokens.RefreshToken, Client{})
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.Contains(t, f.logTypes(t, user.ID), model.AuthEventTokenReuse)

	_, err = f.svc.ValidateAccessToken(pair.AccessToken)
	assert.Error(t, err)
	_, err = f.svc.Refresh(pair.RefreshToken, Client{})
	assert.ErrorIs(t, err, ErrTokenRevoked)

	sessions, err := f.svc.ListSessions(user.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRefreshRejectsOtherTokens(t *testing.T) {
	f := newFixture(t)
	f.register(t, "salem")
	res := f.login(t, "salem", "zaitoun2024")

	_, err := f.svc.Refresh("unknown", Client{})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.svc.Refresh(res.Tokens.AccessToken, Client{})
	assert.ErrorIs(t, err, ErrInvalidToken)

	f.clock.Advance(f.cfg.RefreshTTL() + time.Second)
	_, err = f.svc.Refresh(res.Tokens.RefreshToken, Client{})
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSessions(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")
	other := f.register(t, "layla")
	first := f.login(t, "salem", "zaitoun2024")
	second := f.login(t, "salem", "zaitoun2024")
	third := f.login(t, "salem", "zaitoun2024")
	laylas := f.login(t, "layla", "zaitoun2024")

	sessions, err := f.svc.ListSessions(user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)

	err = f.svc.RevokeSession(user.ID, laylas.Tokens.SessionID, Client{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.svc.RevokeSession(user.ID, second.Tokens.SessionID, Client{}))
	n, err := f.svc.RevokeOtherSessions(user.ID, first.Tokens.SessionID, Client{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.ValidateAccessToken(third.Tokens.AccessToken)
	assert.Error(t, err)
	_, err = f.svc.ValidateAccessToken(first.Tokens.AccessToken)
	assert.NoError(t, err)

	sessions, err = f.svc.ListSessions(other.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")
	current := f.login(t, "salem", "zaitoun2024")
	elsewhere := f.login(t, "salem", "zaitoun2024")

	err := f.svc.ChangePassword(user.ID, current.Tokens.SessionID, "wrong-1", "nakheel2025", Client{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = f.svc.ChangePassword(user.ID, current.Tokens.SessionID, "zaitoun2024", "zaitoun2024", Client{})
	assert.ErrorIs(t, err, ErrPasswordReused)

	err = f.svc.ChangePassword(user.ID, current.Tokens.SessionID, "zaitoun2024", "short", Client{})
	assert.ErrorIs(t, err, ErrWeakPassword)

	require.NoError(t, f.svc.ChangePassword(user.ID, current.Tokens.SessionID, "zaitoun2024", "nakheel2025", Client{}))

	_, err = f.svc.ValidateAccessToken(current.Tokens.AccessToken)
	assert.NoError(t, err)
	_, err = f.svc.ValidateAccessToken(elsewhere.Tokens.AccessToken)
	assert.Error(t, err)

	_, err = f.svc.Login(LoginInput{Login: "salem", Password: "zaitoun2024"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	f.login(t, "salem", "nakheel2025")
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")
	res := f.login(t, "salem", "zaitoun2024")

	raw, err := f.svc.RequestPasswordReset("nobody@example.org", Client{})
	require.NoError(t, err)
	assert.Empty(t, raw)

	stale, err := f.svc.RequestPasswordReset("SALEM@example.org", Client{})
	require.NoError(t, err)
	require.NotEmpty(t, stale)
	raw, err = f.svc.RequestPasswordReset("salem@example.org", Client{})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ResetPassword(stale, "nakheel2025", Client{}), ErrTokenRevoked)

	// A rejected password leaves the token usable
	assert.ErrorIs(t, f.svc.ResetPassword(raw, "weak", Client{}), ErrInvalidInput)

	require.NoError(t, f.svc.ResetPassword(raw, "nakheel2025", Client{}))
	assert.ErrorIs(t, f.svc.ResetPassword(raw, "nakheel2026", Client{}), ErrTokenRevoked)

	_, err = f.svc.ValidateAccessToken(res.Tokens.AccessToken)
	assert.Error(t, err)
	f.login(t, "salem", "nakheel2025")
	assert.Contains(t, f.logTypes(t, user.ID), model.AuthEventPasswordReset)
}

func TestPasswordResetExpires(t *testing.T) {
	f := newFixture(t)
	f.register(t, "salem")

	raw, err := f.svc.RequestPasswordReset("salem@example.org", Client{})
	require.NoError(t, err)

	f.clock.Advance(f.cfg.ResetTTL() + time.Second)
	assert.ErrorIs(t, f.svc.ResetPassword(raw, "nakheel2025", Client{}), ErrTokenExpired)
}

func TestPasswordResetClearsLockout(t *testing.T) {
	f := newFixture(t)
	f.register(t, "salem")
	for i := 0; i < f.cfg.MaxFailedLogins; i++ {
		_, _ = f.svc.Login(LoginInput{Login: "salem", Password: "wrong-1"})
	}

	raw, err := f.svc.RequestPasswordReset("salem@example.org", Client{})
	require.NoError(t, err)
	require.NoError(t, f.svc.ResetPassword(raw, "nakheel2025", Client{}))
	f.login(t, "salem", "nakheel2025")
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totpOpts)
	require.NoError(t, err)
	return code
}

func TestMFALogin(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")

	setup, err := f.svc.SetupMFA(user.ID, Client{})
	require.NoError(t, err)
	assert.Len(t, setup.BackupCodes, f.cfg.MFABackupCodes)
	assert.Contains(t, setup.URL, "otpauth://totp/")

	stored, err := f.store.GetMFAConfig(user.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
	assert.NotContains(t, string(stored.Secret), setup.Secret)

	// Not enabled yet, so login does not ask for a code
	assert.False(t, f.login(t, "salem", "zaitoun2024").MFARequired)

	assert.ErrorIs(t, f.svc.EnableMFA(user.ID, "00000x", Client{}), ErrInvalidMFACode)
	require.NoError(t, f.svc.EnableMFA(user.ID, totpCode(t, setup.Secret, f.clock.Now()), Client{}))

	res := f.login(t, "salem", "zaitoun2024")
	require.True(t, res.MFARequired)
	require.NotEmpty(t, res.MFAToken)
	assert.Nil(t, res.Tokens)

	_, err = f.svc.CompleteMFALogin(res.MFAToken, "123456x", Client{})
	assert.ErrorIs(t, err, ErrInvalidMFACode)
	assert.Contains(t, f.logTypes(t, user.ID), model.AuthEventMFAFailed)

	// One step of clock skew is tolerated
	done, err := f.svc.CompleteMFALogin(res.MFAToken, totpCode(t, setup.Secret, f.clock.Now().Add(-30*time.Second)), Client{})
	require.NoError(t, err)
	require.NotNil(t, done.Tokens)

	_, err = f.svc.CompleteMFALogin(res.MFAToken, totpCode(t, setup.Secret, f.clock.Now()), Client{})
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestMFABackupCodesAreSingleUse(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")
	setup, err := f.svc.SetupMFA(user.ID, Client{})
	require.NoError(t, err)
	require.NoError(t, f.svc.EnableMFA(user.ID, totpCode(t, setup.Secret, f.clock.Now()), Client{}))

	res := f.login(t, "salem", "zaitoun2024")
	_, err = f.svc.CompleteMFALogin(res.MFAToken, setup.BackupCodes[0], Client{})
	require.NoError(t, err)

	status, err := f.svc.MFAStatus(user.ID)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Equal(t, f.cfg.MFABackupCodes-1, status.BackupCodesRemaining)

	res = f.login(t, "salem", "zaitoun2024")
	_, err = f.svc.CompleteMFALogin(res.MFAToken, setup.BackupCodes[0], Client{})
	assert.ErrorIs(t, err, ErrInvalidMFACode)
}

// mfaUser registers a user and enables MFA, returning the TOTP secret and
// backup codes
func (f *fixture) mfaUser(t *testing.T, username string) (*model.User, *MFASetup) {
	t.Helper()
	user := f.register(t, username)
	setup, err := f.svc.SetupMFA(user.ID, Client{})
	require.NoError(t, err)
	require.NoError(t, f.svc.EnableMFA(user.ID, totpCode(t, setup.Secret, f.clock.Now()), Client{}))
	return user, setup
}

func TestMFAChallengeIsLogged(t *testing.T) {
	f := newFixture(t)
	user, _ := f.mfaUser(t, "salem")

	res := f.login(t, "salem", "zaitoun2024")
	require.True(t, res.MFARequired)
	assert.Contains(t, f.logTypes(t, user.ID), model.AuthEventMFAChallenge)
	assert.NotContains(t, f.logTypes(t, user.ID), model.AuthEventLogin)
}

func TestMFAWrongCodesLockAccount(t *testing.T) {
	f := newFixture(t)
	user, setup := f.mfaUser(t, "salem")
	require.Equal(t, 5, f.cfg.MaxFailedLogins)

	// Starting a fresh challenge with the right password does not reset
	// the count of wrong codes
	first := f.login(t, "salem", "zaitoun2024")
	for i := 0; i < 3; i++ {
		_, err := f.svc.CompleteMFALogin(first.MFAToken, "bad-code", Client{})
		assert.ErrorIs(t, err, ErrInvalidMFACode)
	}
	second := f.login(t, "salem", "zaitoun2024")
	_, err := f.svc.CompleteMFALogin(second.MFAToken, "bad-code", Client{})
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	_, err = f.svc.CompleteMFALogin(second.MFAToken, "bad-code", Client{})
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Contains(t, f.logTypes(t, user.ID), model.AuthEventAccountLocked)

	// Neither challenge can be finished now, even with a valid code
	_, err = f.svc.CompleteMFALogin(second.MFAToken, totpCode(t, setup.Secret, f.clock.Now()), Client{})
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = f.svc.CompleteMFALogin(first.MFAToken, totpCode(t, setup.Secret, f.clock.Now()), Client{})
	assert.ErrorIs(t, err, ErrAccountLocked)

	_, err = f.svc.Login(LoginInput{Login: "salem", Password: "zaitoun2024"})
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestMFAChallengeRevokedAfterRepeatedWrongCodes(t *testing.T) {
	f := newFixture(t)
	user, setup := f.mfaUser(t, "salem")
	f.cfg.MaxFailedLogins = 100

	res := f.login(t, "salem", "zaitoun2024")
	for i := 1; i < maxChallengeAttempts; i++ {
		_, err := f.svc.CompleteMFALogin(res.MFAToken, "bad-code", Client{})
		assert.ErrorIs(t, err, ErrInvalidMFACode, "attempt %d", i)
	}
	_, err := f.svc.CompleteMFALogin(res.MFAToken, "bad-code", Client{})
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = f.svc.CompleteMFALogin(res.MFAToken, totpCode(t, setup.Secret, f.clock.Now()), Client{})
	assert.ErrorIs(t, err, ErrTokenRevoked)

	stored, err := f.store.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, maxChallengeAttempts, stored.FailedLoginAttempts)

	// A new challenge with the right code succeeds and clears the counter
	res = f.login(t, "salem", "zaitoun2024")
	done, err := f.svc.CompleteMFALogin(res.MFAToken, totpCode(t, setup.Secret, f.clock.Now()), Client{})
	require.NoError(t, err)
	require.NotNil(t, done.Tokens)

	stored, err = f.store.GetUser(user.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedLoginAttempts)
}

func TestMFABackupCodeSpentOnceAcrossChallenges(t *testing.T) {
	f := newFixture(t)
	_, setup := f.mfaUser(t, "salem")
	f.cfg.MaxFailedLogins = 1000

	const logins = 20
	challenges := make([]string, logins)
	for i := range challenges {
		challenges[i] = f.login(t, "salem", "zaitoun2024").MFAToken
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, challenge := range challenges {
		wg.Add(1)
		go func(challenge string) {
			defer wg.Done()
			if _, err := f.svc.CompleteMFALogin(challenge, setup.BackupCodes[0], Client{}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(challenge)
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestMFAChallengeExpires(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")
	setup, err := f.svc.SetupMFA(user.ID, Client{})
	require.NoError(t, err)
	require.NoError(t, f.svc.EnableMFA(user.ID, totpCode(t, setup.Secret, f.clock.Now()), Client{}))

	res := f.login(t, "salem", "zaitoun2024")
	f.clock.Advance(f.cfg.ChallengeTTL() + time.Second)
	_, err = f.svc.CompleteMFALogin(res.MFAToken, totpCode(t, setup.Secret, f.clock.Now()), Client{})
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestMFAManagement(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")

	status, err := f.svc.MFAStatus(user.ID)
	require.NoError(t, err)
	assert.False(t, status.Configured)

	assert.ErrorIs(t, f.svc.EnableMFA(user.ID, "123456", Client{}), ErrMFANotConfigured)

	setup, err := f.svc.SetupMFA(user.ID, Client{})
	require.NoError(t, err)
	_, err = f.svc.RegenerateBackupCodes(user.ID, totpCode(t, setup.Secret, f.clock.Now()), Client{})
	assert.ErrorIs(t, err, ErrMFANotEnabled)

	require.NoError(t, f.svc.EnableMFA(user.ID, totpCode(t, setup.Secret, f.clock.Now()), Client{}))
	_, err = f.svc.SetupMFA(user.ID, Client{})
	assert.ErrorIs(t, err, ErrMFAAlreadyEnabled)

	codes, err := f.svc.RegenerateBackupCodes(user.ID, totpCode(t, setup.Secret, f.clock.Now()), Client{})
	require.NoError(t, err)
	assert.NotEqual(t, setup.BackupCodes, codes)

	// Backup codes are not accepted for regeneration
	_, err = f.svc.RegenerateBackupCodes(user.ID, codes[0], Client{})
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	require.NoError(t, f.svc.DisableMFA(user.ID, codes[1], Client{}))
	assert.False(t, f.login(t, "salem", "zaitoun2024").MFARequired)
	assert.Contains(t, f.logTypes(t, user.ID), model.AuthEventMFADisabled)
}

func idToken(t *testing.T, sub, email string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"aud":   "hasad",
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(oauthSecret))
	require.NoError(t, err)
	return s
}

func TestOAuthLinkAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "salem")
	other := f.register(t, "layla")
	tok := idToken(t, "ext-42", "salem@farm.example")

	_, err := f.svc.LoginWithOAuth(ctx, "farmid", tok, Client{})
	assert.ErrorIs(t, err, ErrOAuthNotLinked)

	_, err = f.svc.LinkOAuthAccount(ctx, user.ID, "github", tok, Client{})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = f.svc.LinkOAuthAccount(ctx, user.ID, "farmid", "not-a-token", Client{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	account, err := f.svc.LinkOAuthAccount(ctx, user.ID, "farmid", tok, Client{})
	require.NoError(t, err)
	assert.Equal(t, "ext-42", account.ProviderUserID)
	assert.Equal(t, "salem@farm.example", account.Email)

	again, err := f.svc.LinkOAuthAccount(ctx, user.ID, "farmid", tok, Client{})
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)

	_, err = f.svc.LinkOAuthAccount(ctx, other.ID, "farmid", tok, Client{})
	assert.ErrorIs(t, err, ErrConflict)

	res, err := f.svc.LoginWithOAuth(ctx, "farmid", tok, Client{IP: "10.0.0.9"})
	require.NoError(t, err)
	id, err := f.svc.ValidateAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)

	assert.ErrorIs(t, f.svc.UnlinkOAuthAccount(other.ID, account.ID, Client{}), ErrNotFound)
	require.NoError(t, f.svc.UnlinkOAuthAccount(user.ID, account.ID, Client{}))
	accounts, err := f.svc.ListOAuthAccounts(user.ID)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestAdministration(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "salem")
	res := f.login(t, "salem", "zaitoun2024")

	assert.ErrorIs(t, f.svc.SetUserRole("admin", user.ID, "owner"), ErrInvalidRole)
	require.NoError(t, f.svc.SetUserRole("admin", user.ID, model.RoleViewer))

	require.NoError(t, f.svc.SetUserActive("admin", user.ID, false))
	_, err := f.svc.ValidateAccessToken(res.Tokens.AccessToken)
	assert.Error(t, err)
	require.NoError(t, f.svc.SetUserActive("admin", user.ID, true))

	for i := 0; i < f.cfg.MaxFailedLogins; i++ {
		_, _ = f.svc.Login(LoginInput{Login: "salem", Password: "wrong-1"})
	}
	require.NoError(t, f.svc.UnlockUser("admin", user.ID))
	f.login(t, "salem", "zaitoun2024")

	created, err := f.svc.CreateUser(RegisterInput{Username: "manager1", Email: "m@example.org", Password: "zaitoun2024"}, model.RoleManager, "hasadctl")
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, created.Role)

	require.NoError(t, f.svc.SetPassword(created.ID, "nakheel2025", "hasadctl"))
	f.login(t, "manager1", "nakheel2025")

	users, err := f.svc.ListUsers(0, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	types := f.logTypes(t, user.ID)
	assert.Contains(t, types, model.AuthEventRoleChanged)
	assert.Contains(t, types, model.AuthEventAccountDisabled)
	assert.Contains(t, types, model.AuthEventAccountUnlocked)
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	f.register(t, "salem")
	f.login(t, "salem", "zaitoun2024")

	res, err := f.svc.PurgeExpired(f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, res.Tokens)
	assert.Zero(t, res.Sessions)

	later := f.clock.Now().Add(f.cfg.RefreshTTL() + 48*time.Hour)
	res, err = f.svc.PurgeExpired(later)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Tokens)
	assert.Equal(t, int64(1), res.Sessions)
}
