package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	ivSize       = 12
	tagSize      = aes.BlockSize
	versionMagic = byte('H')
	// KeySize is the size in bytes of a data encryption key
	KeySize = 32
)

var (
	ErrShortCiphertext = errors.New("ciphertext is too short")
	ErrUnknownVersion  = errors.New("ciphertext has an unknown version")
)

// SymmetricCipher encrypts values stored at rest. The associated data binds a
// ciphertext to the row it belongs to, so a value copied into another row
// fails to decrypt.
type SymmetricCipher interface {
	Decrypt(aad, packedText []byte) ([]byte, error)
	Encrypt(aad, plainText []byte) ([]byte, error)
}

// Symmetric is an AES-256-GCM SymmetricCipher
type Symmetric struct {
	aesgcm gocipher.AEAD
}

// NewSymmetric creates a cipher from a raw key
func NewSymmetric(key []byte) (SymmetricCipher, error) {
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := gocipher.NewGCM(c)
	if err != nil {
		return nil, err
	}

	return &Symmetric{aesgcm: aesgcm}, nil
}

// FromEnv builds a cipher from the base64 encoded HASAD_DATA_KEY
func FromEnv() (SymmetricCipher, error) {
	dataKeyB64, ok := os.LookupEnv("HASAD_DATA_KEY")
	if !ok {
		return nil, errors.New("HASAD_DATA_KEY environment variable is required")
	}
	dataKey, err := base64.StdEncoding.DecodeString(dataKeyB64)
	if err != nil {
		return nil, fmt.Errorf("bad HASAD_DATA_KEY: %w", err)
	}
	if len(dataKey) != KeySize {
		return nil, fmt.Errorf("bad HASAD_DATA_KEY: expected %d bytes, got %d", KeySize, len(dataKey))
	}
	return NewSymmetric(dataKey)
}

func (s Symmetric) Decrypt(aad, packedText []byte) ([]byte, error) {
	if len(packedText) < 1+tagSize+ivSize {
		return nil, ErrShortCiphertext
	}
	if packedText[0] != versionMagic {
		return nil, ErrUnknownVersion
	}

	cipherText, iv := unpack(packedText)

	return s.aesgcm.Open(nil, iv, cipherText, aad)
}

func (s Symmetric) Encrypt(aad, plainText []byte) ([]byte, error) {
	nonce, err := RandomBytes(ivSize)
	if err != nil {
		return nil, err
	}

	sealed := s.aesgcm.Seal(nil, nonce, plainText, aad)
	return pack(sealed, nonce), nil
}

// RandomBytes returns size bytes from crypto/rand
func RandomBytes(size int) ([]byte, error) {
	value := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, value); err != nil {
		return nil, err
	}

	return value, nil
}

// pack lays out the sealed box as version|tag|iv|ciphertext
func pack(cipherTextWithTag []byte, iv []byte) []byte {
	tagStart := len(cipherTextWithTag) - tagSize
	tag := cipherTextWithTag[tagStart:]
	cipherText := cipherTextWithTag[:tagStart]

	data := make([]byte, 1+tagSize+ivSize+len(cipherText))
	data[0] = versionMagic
	index := 1

	copy(data[index:], tag)
	index += tagSize

	copy(data[index:], iv[:ivSize])
	index += ivSize

	copy(data[index:], cipherText)

	return data
}

func unpack(packedText []byte) ([]byte, []byte) {
	index := 1

	tag := packedText[index : index+tagSize]
	index += tagSize

	iv := packedText[index : index+ivSize]
	index += ivSize

	cipherText := make([]byte, 0, len(packedText)-index+tagSize)
	cipherText = append(cipherText, packedText[index:]...)
	cipherText = append(cipherText, tag...)

	return cipherText, iv
}
