package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes = 16
	hashBytes = 64
	kdfRounds = 210_000
)

// NewSalt returns a fresh random salt as a hex string.
func NewSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword derives a PBKDF2-SHA512 hash of plain under the given hex salt
// and returns it hex-encoded. The salt is stored next to the hash so the same
// derivation can be replayed at login.
func HashPassword(plain, saltHex string) (string, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(plain), salt, kdfRounds, hashBytes, sha512.New)
	return hex.EncodeToString(key), nil
}

// VerifyPassword recomputes the hash of plain under the stored salt and
// compares it against the stored hash in constant time.
func VerifyPassword(storedHashHex, saltHex, plain string) bool {
	computed, err := HashPassword(plain, saltHex)
	if err != nil {
		return false
	}
	a, err := hex.DecodeString(storedHashHex)
	if err != nil {
		return false
	}
	b, _ := hex.DecodeString(computed)
	return hmac.Equal(a, b)
}
