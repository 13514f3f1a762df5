package identity

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/token"
)

func TestFromClaims(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	claims := &token.Claims{
		SessionID: "s-1",
		Role:      "manager",
		Name:      "khalid",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Subject:   "u-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	id := FromClaims(claims)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, "khalid", id.Username)
	assert.Equal(t, model.RoleManager, id.Role)
	assert.Equal(t, "s-1", id.SessionID)
	assert.Equal(t, "jti-1", id.TokenID)
	assert.True(t, id.IssuedAt.Equal(now))
	assert.True(t, id.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestIdentity_Roles(t *testing.T) {
	tests := []struct {
		name    string
		id      *Identity
		admin   bool
		manager bool
		authed  bool
	}{
		{name: "nil is anonymous", id: nil},
		{name: "viewer", id: &Identity{UserID: "u", Role: model.RoleViewer}, authed: true},
		{name: "manager", id: &Identity{UserID: "u", Role: model.RoleManager}, manager: true, authed: true},
		{name: "admin", id: &Identity{UserID: "u", Role: model.RoleAdmin}, admin: true, manager: true, authed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.admin, tt.id.IsAdmin())
			assert.Equal(t, tt.manager, tt.id.HasRole(model.RoleManager))
			assert.Equal(t, tt.authed, tt.id.Authenticated())
		})
	}
}

func TestIdentity_WithMethods(t *testing.T) {
	id := (&Identity{UserID: "u-1"}).
		WithRemoteIP(net.ParseIP("10.0.0.7")).
		WithUserAgent("curl/8")

	assert.Equal(t, "10.0.0.7", id.IP())
	assert.Equal(t, "curl/8", id.UserAgent)

	var anon *Identity
	assert.Equal(t, "", anon.IP())
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	_, ok := Get(ctx)
	assert.False(t, ok)

	ctx = Set(ctx, &Identity{UserID: "u-1"})
	id, ok := Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-1", id.UserID)
}
