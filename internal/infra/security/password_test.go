package security

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !VerifyPassword("correct horse battery staple", hash) {
		t.Fatal("expected password to verify against its own hash")
	}
	if VerifyPassword("wrong password", hash) {
		t.Fatal("wrong password verified")
	}
	if VerifyPassword("", hash) {
		t.Fatal("empty password verified")
	}
}

func TestHashPasswordRequiresInput(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestHashPasswordProducesDistinctDigests(t *testing.T) {
	first, err := HashPassword("same input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := HashPassword("same input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	// bcrypt salts per call, so equal inputs still produce distinct digests.
	if first == second {
		t.Fatal("expected distinct hashes for repeated input")
	}
	if !VerifyPassword("same input", first) || !VerifyPassword("same input", second) {
		t.Fatal("both hashes should verify")
	}
}

func TestHashAndVerifyOTP(t *testing.T) {
	hash, err := HashOTP("042137")
	if err != nil {
		t.Fatalf("HashOTP: %v", err)
	}

	if !VerifyOTP("042137", hash) {
		t.Fatal("expected code to verify against its own hash")
	}
	if VerifyOTP("042138", hash) {
		t.Fatal("wrong code verified")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	if err := ValidatePasswordStrength("abc"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("short password: expected ErrWeakPassword, got %v", err)
	}
	if err := ValidatePasswordStrength("123456"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("trivial password: expected ErrWeakPassword, got %v", err)
	}
	if err := ValidatePasswordStrength("tr1cky-Raven-perch"); err != nil {
		t.Fatalf("strong password rejected: %v", err)
	}
}

func TestValidatePasswordStrengthPenalizesUserInputs(t *testing.T) {
	err := ValidatePasswordStrength("jane.doe", "jane.doe@example.com", "Jane")
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword for email-derived password, got %v", err)
	}
}

func TestHashToken(t *testing.T) {
	first := HashToken("some.refresh.token")
	second := HashToken("some.refresh.token")

	if first != second {
		t.Fatal("expected deterministic hash")
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	if strings.ToLower(first) != first {
		t.Fatal("expected lowercase hex encoding")
	}
	if HashToken("different.token") == first {
		t.Fatal("distinct inputs produced equal hashes")
	}
}
