// Package authn holds local password credentials: hashing, verification
// and the password policy.
package authn

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/hasad-erp/hasad/pkg/authenticator"
)

// Cost is the bcrypt work factor for new hashes
var Cost = bcrypt.DefaultCost

// MaxPasswordLength is the longest password bcrypt can digest
const MaxPasswordLength = 72

// ErrWeakPassword wraps every policy violation
var ErrWeakPassword = errors.New("password does not meet policy")

// Hash returns the bcrypt hash of password
func Hash(password string) (string, error) {
	if len(password) > MaxPasswordLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrWeakPassword, MaxPasswordLength)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Compare checks password against a stored hash. Any mismatch, including a
// malformed hash, is reported as authenticator.ErrInvalidCredentials.
func Compare(hash, password string) error {
	if hash == "" {
		return authenticator.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return authenticator.ErrInvalidCredentials
	}
	return nil
}

// ValidatePolicy requires at least minLength characters with at least one
// letter and one digit.
func ValidatePolicy(password string, minLength int) error {
	if len([]rune(password)) < minLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrWeakPassword, MaxPasswordLength)
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return fmt.Errorf("%w: must contain a letter and a digit", ErrWeakPassword)
	}
	return nil
}
