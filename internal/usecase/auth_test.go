package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/infra/security"
)

const testPassword = "plum-torch-otter-99"

var (
	testHashOnce sync.Once
	testHash     domain.PasswordHash
)

// hashedTestPassword memoizes the bcrypt digest so the suite pays the hashing
// cost once.
func hashedTestPassword(t *testing.T) domain.PasswordHash {
	t.Helper()
	testHashOnce.Do(func() {
		hash, err := security.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("hash test password: %v", err)
		}
		testHash = hash
	})
	return testHash
}

func newTestTokenService(t *testing.T) *security.TokenService {
	t.Helper()
	tokens, err := security.NewTokenService("test-access-secret", "test-refresh-secret", "taskvault-test")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return tokens
}

type authFixture struct {
	users     *memUserRepo
	otps      *OTPManager
	otpStore  *memOTPStore
	tokens    *security.TokenService
	publisher *recordingPublisher
	auth      *AuthService
}

func newAuthFixture(t *testing.T, users ...*domain.User) *authFixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	repo := newMemUserRepo(users...)
	store := newMemOTPStore()
	otps := NewOTPManager(store, repo, &recordingMailer{}, log)
	tokens := newTestTokenService(t)
	publisher := &recordingPublisher{}
	auth := NewAuthService(repo, otps, tokens, publisher, log)
	return &authFixture{
		users:     repo,
		otps:      otps,
		otpStore:  store,
		tokens:    tokens,
		publisher: publisher,
		auth:      auth,
	}
}

func verifiedUser(t *testing.T) *domain.User {
	user := testUser()
	user.PasswordHash = hashedTestPassword(t)
	return user
}

func TestAuthServiceLogin(t *testing.T) {
	user := verifiedUser(t)
	fx := newAuthFixture(t, user)

	got, pair, err := fx.auth.Login(context.Background(), user.Email, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if got.PasswordHash != "" || got.RefreshTokenHash != nil {
		t.Fatal("returned user must not carry secrets")
	}

	uid, err := fx.tokens.VerifyAccessToken(pair.AccessToken)
	if err != nil || uid != user.ID {
		t.Fatalf("access token should verify for the user, got %q, %v", uid, err)
	}

	stored, err := fx.users.GetByIDWithSecrets(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByIDWithSecrets: %v", err)
	}
	want := security.HashToken(pair.RefreshToken)
	if stored.RefreshTokenHash == nil || *stored.RefreshTokenHash != want {
		t.Fatal("refresh token hash was not mirrored into the user record")
	}
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	user := verifiedUser(t)
	fx := newAuthFixture(t, user)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", user.Email, "not-the-password"},
		{"unknown email", "nobody@example.com", testPassword},
		{"empty password", user.Email, ""},
		{"empty email", "", testPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := fx.auth.Login(context.Background(), tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestAuthServiceLoginRejectsUnverified(t *testing.T) {
	user := verifiedUser(t)
	user.IsVerified = false
	fx := newAuthFixture(t, user)

	if _, _, err := fx.auth.Login(context.Background(), user.Email, testPassword); !errors.Is(err, ErrAccountNotVerified) {
		t.Fatalf("expected ErrAccountNotVerified, got %v", err)
	}
}

func TestAuthServiceTwoStepLogin(t *testing.T) {
	user := verifiedUser(t)
	fx := newAuthFixture(t, user)

	code, err := fx.auth.RequestLoginOTP(context.Background(), user.Email, testPassword)
	if err != nil {
		t.Fatalf("RequestLoginOTP: %v", err)
	}

	got, pair, err := fx.auth.VerifyLoginOTP(context.Background(), user.Email, code)
	if err != nil {
		t.Fatalf("VerifyLoginOTP: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}

	// The code is burned by the successful verification.
	if _, _, err := fx.auth.VerifyLoginOTP(context.Background(), user.Email, code); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid on reuse, got %v", err)
	}
}

func TestAuthServiceRequestLoginOTPNeedsPassword(t *testing.T) {
	user := verifiedUser(t)
	fx := newAuthFixture(t, user)

	if _, err := fx.auth.RequestLoginOTP(context.Background(), user.Email, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthServiceRefreshRotatesSession(t *testing.T) {
	user := verifiedUser(t)
	fx := newAuthFixture(t, user)

	_, pair, err := fx.auth.Login(context.Background(), user.Email, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rotated, err := fx.auth.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.AccessToken == "" || rotated.RefreshToken == "" {
		t.Fatal("expected a rotated pair")
	}

	// The superseded token's signature still verifies, but the stored hash
	// has moved on, so it can never refresh again.
	if _, err := fx.auth.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected superseded token to fail, got %v", err)
	}
	if _, err := fx.auth.Refresh(context.Background(), rotated.RefreshToken); err != nil {
		t.Fatalf("latest token should refresh, got %v", err)
	}
}

func TestAuthServiceRefreshRejectsGarbage(t *testing.T) {
	user := verifiedUser(t)
	fx := newAuthFixture(t, user)

	if _, err := fx.auth.Refresh(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}

	// An access token must not pass as a refresh token.
	access, err := fx.tokens.IssueAccessToken(user.ID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := fx.auth.Refresh(context.Background(), access); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected access token to be rejected, got %v", err)
	}
}

func TestAuthServiceRefreshAfterLogout(t *testing.T) {
	user := verifiedUser(t)
	fx := newAuthFixture(t, user)

	_, pair, err := fx.auth.Login(context.Background(), user.Email, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := fx.auth.Logout(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(fx.publisher.loggedOut) != 1 {
		t.Fatalf("expected one logged-out event, got %d", len(fx.publisher.loggedOut))
	}

	if _, err := fx.auth.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected refresh to fail after logout, got %v", err)
	}
}

func TestAuthServiceLogoutRejectsGarbageToken(t *testing.T) {
	fx := newAuthFixture(t, verifiedUser(t))

	if err := fx.auth.Logout(context.Background(), "garbage"); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}
