package authn

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hasad-erp/hasad/pkg/authenticator"
)

func init() {
	Cost = bcrypt.MinCost
}

func TestHashAndCompare(t *testing.T) {
	hash, err := Hash("nakhla2024")
	require.NoError(t, err)
	assert.NotEqual(t, "nakhla2024", hash)

	assert.NoError(t, Compare(hash, "nakhla2024"))
	assert.ErrorIs(t, Compare(hash, "wrong-password1"), authenticator.ErrInvalidCredentials)
	assert.ErrorIs(t, Compare("", "nakhla2024"), authenticator.ErrInvalidCredentials)
	assert.ErrorIs(t, Compare("not-a-hash", "nakhla2024"), authenticator.ErrInvalidCredentials)
}

func TestHash_TooLong(t *testing.T) {
	_, err := Hash(strings.Repeat("a", MaxPasswordLength+1))
	assert.True(t, errors.Is(err, ErrWeakPassword))
}

func TestValidatePolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "palmtree9"},
		{name: "arabic letters count", password: "نخلة12345"},
		{name: "too short", password: "ab1", wantErr: true},
		{name: "no digit", password: "onlyletters", wantErr: true},
		{name: "no letter", password: "1234567890", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePolicy(tt.password, 8)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrWeakPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
