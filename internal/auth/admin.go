package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrLoginDisabled  = errors.New("admin login is not configured")
)

// Admin is the single console operator account.
type Admin struct {
	Username     string
	PasswordHash []byte
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify checks the submitted credentials.
func (a Admin) Verify(username, password string) error {
	if len(a.PasswordHash) == 0 {
		return ErrLoginDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password))
	if !userOK || passErr != nil {
		return ErrBadCredentials
	}
	return nil
}
