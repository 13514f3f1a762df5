package cipher

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestNewSymmetric(t *testing.T) {
	c, err := NewSymmetric(testKey())
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewSymmetric(make([]byte, 15))
	assert.Error(t, err, "AES requires 16, 24 or 32 byte keys")
}

func TestSymmetricEncryptDecrypt(t *testing.T) {
	c, err := NewSymmetric(testKey())
	require.NoError(t, err)

	tests := []struct {
		name      string
		aad       []byte
		plaintext []byte
	}{
		{name: "totp seed", aad: []byte("user-1"), plaintext: []byte("JBSWY3DPEHPK3PXP")},
		{name: "empty", aad: []byte("user-1"), plaintext: []byte{}},
		{name: "long", aad: []byte("oauth-1"), plaintext: bytes.Repeat([]byte("x"), 10000)},
		{name: "binary", aad: nil, plaintext: []byte{0x00, 0x01, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := c.Encrypt(tt.aad, tt.plaintext)
			require.NoError(t, err)
			assert.Equal(t, versionMagic, sealed[0])
			assert.Len(t, sealed, 1+tagSize+ivSize+len(tt.plaintext))

			plain, err := c.Decrypt(tt.aad, sealed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.plaintext, plain))
		})
	}
}

func TestDecryptWrongAAD(t *testing.T) {
	c, err := NewSymmetric(testKey())
	require.NoError(t, err)

	sealed, err := c.Encrypt([]byte("user-1"), []byte("secret"))
	require.NoError(t, err)

	_, err = c.Decrypt([]byte("user-2"), sealed)
	assert.Error(t, err)
}

func TestDecryptMalformed(t *testing.T) {
	c, err := NewSymmetric(testKey())
	require.NoError(t, err)

	_, err = c.Decrypt(nil, []byte("short"))
	assert.ErrorIs(t, err, ErrShortCiphertext)

	sealed, err := c.Encrypt(nil, []byte("secret"))
	require.NoError(t, err)
	sealed[0] = 'G'
	_, err = c.Decrypt(nil, sealed)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestEncryptIsRandomized(t *testing.T) {
	c, err := NewSymmetric(testKey())
	require.NoError(t, err)

	a, _ := c.Encrypt(nil, []byte("same"))
	b, _ := c.Encrypt(nil, []byte("same"))
	assert.NotEqual(t, a, b)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("HASAD_DATA_KEY", base64.StdEncoding.EncodeToString(testKey()))
	c, err := FromEnv()
	require.NoError(t, err)
	assert.NotNil(t, c)

	t.Setenv("HASAD_DATA_KEY", "%%%")
	_, err = FromEnv()
	assert.Error(t, err)

	t.Setenv("HASAD_DATA_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	_, err = FromEnv()
	assert.Error(t, err)
}
