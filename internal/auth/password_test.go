package auth

import (
	"errors"
	"testing"
)

func TestHashPasswordRejectsShort(t *testing.T) {
	for _, pw := range []string{"", "a", "abc"} {
		if _, err := HashPassword(pw); !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("HashPassword(%q) = %v, want ErrWeakPassword", pw, err)
		}
	}
}

func TestHashAndVerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash must not equal the plaintext")
	}

	if err := VerifyPassword(hash, "hunter2"); err != nil {
		t.Fatalf("VerifyPassword with correct password failed: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("VerifyPassword with wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyPasswordGarbageHash(t *testing.T) {
	if err := VerifyPassword("not-a-bcrypt-hash", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for garbage hash, got %v", err)
	}
}
