package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidHostKey  = errors.New("invalid host key")
	ErrHostKeyTooShort = errors.New("host key must be at least 8 characters")
)

const (
	minHostKeyLength = 8
	bcryptCost       = 12
)

// HashHostKey creates a bcrypt hash of the host key.
func HashHostKey(key string) (string, error) {
	return hashHostKey(key, bcryptCost)
}

func hashHostKey(key string, cost int) (string, error) {
	if len(key) < minHostKeyLength {
		return "", ErrHostKeyTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyHostKey checks if the provided key matches the hash.
func VerifyHostKey(hashedKey, key string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key)); err != nil {
		return ErrInvalidHostKey
	}
	return nil
}
