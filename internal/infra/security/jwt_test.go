package security

import (
	"errors"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()

	svc, err := NewTokenService("access-secret-for-tests", "refresh-secret-for-tests", "taskvault-test")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestNewTokenServiceRejectsBadSecrets(t *testing.T) {
	if _, err := NewTokenService("", "refresh", "iss"); err == nil {
		t.Fatal("expected error for empty access secret")
	}
	if _, err := NewTokenService("access", "", "iss"); err == nil {
		t.Fatal("expected error for empty refresh secret")
	}
	if _, err := NewTokenService("same", "same", "iss"); err == nil {
		t.Fatal("expected error for identical secrets")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.IssueAccessToken("user-123")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	userID, err := svc.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("expected user-123, got %s", userID)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.IssueRefreshToken("user-456")
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	userID, err := svc.VerifyRefreshToken(token)
	if err != nil {
		t.Fatalf("VerifyRefreshToken: %v", err)
	}
	if userID != "user-456" {
		t.Fatalf("expected user-456, got %s", userID)
	}
}

func TestTokenKindsDoNotCrossVerify(t *testing.T) {
	svc := newTestTokenService(t)

	access, err := svc.IssueAccessToken("user-123")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	refresh, err := svc.IssueRefreshToken("user-123")
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	if _, err := svc.VerifyRefreshToken(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token accepted as refresh, err=%v", err)
	}
	if _, err := svc.VerifyAccessToken(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token accepted as access, err=%v", err)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	svc := newTestTokenService(t)

	issuedAt := time.Now().UTC()
	svc.WithClock(func() time.Time { return issuedAt })

	token, err := svc.IssueAccessToken("user-123")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	svc.WithClock(func() time.Time { return issuedAt.Add(AccessTokenTTL + time.Minute) })

	if _, err := svc.VerifyAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	userID, err := svc.UserIDFromExpiredAccessToken(token)
	if err != nil {
		t.Fatalf("UserIDFromExpiredAccessToken: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("expected user-123, got %s", userID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	svc := newTestTokenService(t)
	other, err := NewTokenService("different-access-secret", "different-refresh-secret", "taskvault-test")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, err := svc.IssueAccessToken("user-123")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := other.VerifyAccessToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t)

	for _, token := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := svc.VerifyAccessToken(token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}
