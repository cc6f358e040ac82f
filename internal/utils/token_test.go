package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	at, err := NewAccessToken("secret", "t1", 7)
	if err != nil {
		t.Fatalf("NewAccessToken failed: %v", err)
	}

	tok, err := jwt.Parse(at.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !tok.Valid {
		t.Fatalf("signed token did not parse: %v", err)
	}
	claims := tok.Claims.(jwt.MapClaims)
	if claims["sub"] != "t1" {
		t.Fatalf("subject mismatch: %v", claims["sub"])
	}

	// Fixed 7-day window, independent of activity.
	want := time.Now().UTC().Add(7 * 24 * time.Hour)
	if at.Exp.Sub(want).Abs() > time.Minute {
		t.Fatalf("expiry not ~7 days out: %v", at.Exp)
	}
}

func TestAccessTokenRejectsWrongKey(t *testing.T) {
	at, err := NewAccessToken("secret", "t1", 7)
	if err != nil {
		t.Fatalf("NewAccessToken failed: %v", err)
	}
	tok, err := jwt.Parse(at.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("other"), nil
	})
	if err == nil && tok.Valid {
		t.Fatal("token verified under the wrong key")
	}
}

func TestActivationTokenHash(t *testing.T) {
	tok, err := NewActivationToken()
	if err != nil {
		t.Fatalf("NewActivationToken failed: %v", err)
	}
	if tok.Raw == "" || tok.Hash == "" || tok.Raw == tok.Hash {
		t.Fatalf("bad token pair: %#v", tok)
	}
	if HashActivationRaw(tok.Raw) != tok.Hash {
		t.Fatal("hash does not match raw token")
	}
	if HashActivationRaw("something else") == tok.Hash {
		t.Fatal("different input produced the same hash")
	}
}
