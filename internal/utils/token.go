package utils // package utils provides helpers for credential and token handling

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed bearer token plus its expiry. The token binds the
// account's username as subject; there is no role claim, the role is read
// from the store on every request.
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// ActivationToken pairs the raw single-use secret mailed to the user with the
// SHA-256 hash that goes into the database. The raw value is never persisted.
type ActivationToken struct {
	Raw  string
	Hash string
}

// NewAccessToken builds and signs an HS256 JWT with the username as subject
// and a fixed validity window of ttlDays. Validity is independent of session
// activity; there is no refresh mechanism.
func NewAccessToken(secret, username string, ttlDays int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour)
	claims := jwt.MapClaims{
		"sub": username,
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewActivationToken generates a cryptographically random 32-byte token and
// its storage hash.
func NewActivationToken() (ActivationToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ActivationToken{}, err
	}
	raw := hex.EncodeToString(buf)
	return ActivationToken{Raw: raw, Hash: HashActivationRaw(raw)}, nil
}

// HashActivationRaw returns the SHA-256 hash of a raw activation token as a
// hex string. Only this hash is ever stored.
func HashActivationRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
