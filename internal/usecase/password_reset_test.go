package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/infra/security"
)

type resetFixture struct {
	*authFixture
	grants *memGrantStore
	resets *PasswordResetService
}

func newResetFixture(t *testing.T, users ...*domain.User) *resetFixture {
	t.Helper()
	fx := newAuthFixture(t, users...)
	grants := newMemGrantStore()
	resets := NewPasswordResetService(fx.users, fx.otps, grants, fx.publisher, zaptest.NewLogger(t))
	return &resetFixture{authFixture: fx, grants: grants, resets: resets}
}

const newTestPassword = "quiet-harbor-lantern-7"

func TestPasswordResetFullFlow(t *testing.T) {
	user := verifiedUser(t)
	fx := newResetFixture(t, user)

	code, err := fx.resets.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	if code == "" {
		t.Fatal("expected a reset code for a known email")
	}

	grant, err := fx.resets.VerifyResetOTP(context.Background(), user.Email, code)
	if err != nil {
		t.Fatalf("VerifyResetOTP: %v", err)
	}
	if grant == "" {
		t.Fatal("expected a reset grant")
	}

	if err := fx.resets.ResetPassword(context.Background(), user.Email, grant, newTestPassword); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, _, err := fx.auth.Login(context.Background(), user.Email, testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, _, err := fx.auth.Login(context.Background(), user.Email, newTestPassword); err != nil {
		t.Fatalf("new password should log in: %v", err)
	}

	if len(fx.publisher.pwChanged) != 1 || fx.publisher.pwChanged[0].Reason != "reset" {
		t.Fatalf("expected one password changed event with reason reset, got %+v", fx.publisher.pwChanged)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	fx := newResetFixture(t)

	code, err := fx.resets.RequestReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("RequestReset must not expose unknown emails, got %v", err)
	}
	if code != "" {
		t.Fatal("no code should be issued for an unknown email")
	}
}

func TestPasswordResetRevokesOpenSession(t *testing.T) {
	user := verifiedUser(t)
	fx := newResetFixture(t, user)

	_, pair, err := fx.auth.Login(context.Background(), user.Email, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	code, err := fx.resets.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	grant, err := fx.resets.VerifyResetOTP(context.Background(), user.Email, code)
	if err != nil {
		t.Fatalf("VerifyResetOTP: %v", err)
	}
	if err := fx.resets.ResetPassword(context.Background(), user.Email, grant, newTestPassword); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := fx.auth.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected the session to die with the old password, got %v", err)
	}
}

func TestPasswordResetGrantIsSingleUse(t *testing.T) {
	user := verifiedUser(t)
	fx := newResetFixture(t, user)

	code, err := fx.resets.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	grant, err := fx.resets.VerifyResetOTP(context.Background(), user.Email, code)
	if err != nil {
		t.Fatalf("VerifyResetOTP: %v", err)
	}

	if err := fx.resets.ResetPassword(context.Background(), user.Email, grant, newTestPassword); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := fx.resets.ResetPassword(context.Background(), user.Email, grant, "another-horizon-owl-3"); !errors.Is(err, ErrInvalidResetGrant) {
		t.Fatalf("expected a consumed grant to be dead, got %v", err)
	}
}

func TestPasswordResetWrongGrantBurns(t *testing.T) {
	user := verifiedUser(t)
	fx := newResetFixture(t, user)

	code, err := fx.resets.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	grant, err := fx.resets.VerifyResetOTP(context.Background(), user.Email, code)
	if err != nil {
		t.Fatalf("VerifyResetOTP: %v", err)
	}

	if err := fx.resets.ResetPassword(context.Background(), user.Email, "wrong-grant", newTestPassword); !errors.Is(err, ErrInvalidResetGrant) {
		t.Fatalf("expected ErrInvalidResetGrant, got %v", err)
	}

	// A mismatched presentation burns the stored grant too.
	if err := fx.resets.ResetPassword(context.Background(), user.Email, grant, newTestPassword); !errors.Is(err, ErrInvalidResetGrant) {
		t.Fatalf("expected the real grant to be burned, got %v", err)
	}
}

func TestPasswordResetOTPCannotChangePasswordDirectly(t *testing.T) {
	user := verifiedUser(t)
	fx := newResetFixture(t, user)

	code, err := fx.resets.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset: %v", err)
	}

	// The passcode itself is not a grant.
	if err := fx.resets.ResetPassword(context.Background(), user.Email, code, newTestPassword); !errors.Is(err, ErrInvalidResetGrant) {
		t.Fatalf("expected the raw code to be refused as a grant, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	user := verifiedUser(t)
	fx := newResetFixture(t, user)

	if err := fx.resets.ChangePassword(context.Background(), user.ID, testPassword, newTestPassword); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, _, err := fx.auth.Login(context.Background(), user.Email, newTestPassword); err != nil {
		t.Fatalf("new password should log in: %v", err)
	}
	if len(fx.publisher.pwChanged) != 1 || fx.publisher.pwChanged[0].Reason != "change" {
		t.Fatalf("expected one password changed event with reason change, got %+v", fx.publisher.pwChanged)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	user := verifiedUser(t)
	fx := newResetFixture(t, user)

	if err := fx.resets.ChangePassword(context.Background(), user.ID, "wrong", newTestPassword); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
}

func TestChangePasswordEnforcesStrength(t *testing.T) {
	user := verifiedUser(t)
	fx := newResetFixture(t, user)

	if err := fx.resets.ChangePassword(context.Background(), user.ID, testPassword, "abc123"); !errors.Is(err, security.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestVerifyResetOTPByUserID(t *testing.T) {
	user := verifiedUser(t)
	fx := newResetFixture(t, user)

	code, err := fx.resets.RequestReset(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("RequestReset: %v", err)
	}

	grant, err := fx.resets.VerifyResetOTPForUser(context.Background(), user.ID, code)
	if err != nil {
		t.Fatalf("VerifyResetOTPForUser: %v", err)
	}

	if err := fx.resets.ResetPassword(context.Background(), user.Email, grant, newTestPassword); err != nil {
		t.Fatalf("ResetPassword with id-issued grant: %v", err)
	}
}

func TestVerifyResetOTPByUnknownUserID(t *testing.T) {
	fx := newResetFixture(t)

	_, err := fx.resets.VerifyResetOTPForUser(context.Background(), "00000000-0000-0000-0000-000000000000", "123456")
	if !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
}
