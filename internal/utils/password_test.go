package utils

import "testing"

func TestPasswordRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	hash, err := HashPassword("correct horse battery staple", salt)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if !VerifyPassword(hash, salt, "correct horse battery staple") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(hash, salt, "wrong password") {
		t.Fatal("wrong password accepted")
	}

	otherSalt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	if VerifyPassword(hash, otherSalt, "correct horse battery staple") {
		t.Fatal("hash verified under a different salt")
	}
}

func TestSaltsAreUnique(t *testing.T) {
	a, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	b, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	if a == b {
		t.Fatal("two salts came out identical")
	}
}
