package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/repository"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *red.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	client := red.NewClient(&red.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestOTPRepository_StoreAndFetch(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewOTPRepository(client, "taskvault:otp")

	now := time.Now().UTC().Truncate(time.Second)
	repo.WithClock(func() time.Time { return now })

	record, err := repo.Store(context.Background(), domain.PurposeLogin, "Jane@Example.com", domain.OTPHash("$2a$10$stub"), 5*time.Minute)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if record.Email != "jane@example.com" {
		t.Fatalf("expected normalized email, got %s", record.Email)
	}
	if !record.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", record.ExpiresAt)
	}

	fetched, err := repo.Fetch(context.Background(), domain.PurposeLogin, "jane@example.com")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fetched.CodeHash != domain.OTPHash("$2a$10$stub") {
		t.Fatalf("unexpected code hash %q", fetched.CodeHash)
	}
	if fetched.Attempts != 0 {
		t.Fatalf("expected zero attempts, got %d", fetched.Attempts)
	}

	if ttl := mr.TTL("taskvault:otp:login:jane@example.com"); ttl != 5*time.Minute {
		t.Fatalf("expected 5m TTL, got %v", ttl)
	}
}

func TestOTPRepository_StoreReplacesPriorCode(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewOTPRepository(client, "taskvault:otp")

	ctx := context.Background()
	if _, err := repo.Store(ctx, domain.PurposeRegistration, "jane@example.com", domain.OTPHash("hash-one"), time.Minute); err != nil {
		t.Fatalf("Store first: %v", err)
	}
	if _, err := repo.IncrementAttempts(ctx, domain.PurposeRegistration, "jane@example.com"); err != nil {
		t.Fatalf("IncrementAttempts: %v", err)
	}

	if _, err := repo.Store(ctx, domain.PurposeRegistration, "jane@example.com", domain.OTPHash("hash-two"), time.Minute); err != nil {
		t.Fatalf("Store second: %v", err)
	}

	fetched, err := repo.Fetch(ctx, domain.PurposeRegistration, "jane@example.com")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fetched.CodeHash != domain.OTPHash("hash-two") {
		t.Fatalf("expected replacement hash, got %q", fetched.CodeHash)
	}
	if fetched.Attempts != 0 {
		t.Fatalf("expected attempts reset, got %d", fetched.Attempts)
	}
}

func TestOTPRepository_PurposesAreIsolated(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewOTPRepository(client, "taskvault:otp")

	ctx := context.Background()
	if _, err := repo.Store(ctx, domain.PurposeLogin, "jane@example.com", domain.OTPHash("login-hash"), time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if _, err := repo.Fetch(ctx, domain.PurposeReset, "jane@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other purpose, got %v", err)
	}
}

func TestOTPRepository_IncrementAttempts(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewOTPRepository(client, "taskvault:otp")

	ctx := context.Background()
	if _, err := repo.Store(ctx, domain.PurposeLogin, "jane@example.com", domain.OTPHash("hash"), time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := repo.IncrementAttempts(ctx, domain.PurposeLogin, "jane@example.com")
		if err != nil {
			t.Fatalf("IncrementAttempts: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d attempts, got %d", want, got)
		}
	}
}

func TestOTPRepository_DeleteIsSingleUse(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewOTPRepository(client, "taskvault:otp")

	ctx := context.Background()
	if _, err := repo.Store(ctx, domain.PurposeLogin, "jane@example.com", domain.OTPHash("hash"), time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := repo.Delete(ctx, domain.PurposeLogin, "jane@example.com"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, domain.PurposeLogin, "jane@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := repo.Fetch(ctx, domain.PurposeLogin, "jane@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestOTPRepository_EntriesExpire(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewOTPRepository(client, "taskvault:otp")

	ctx := context.Background()
	if _, err := repo.Store(ctx, domain.PurposeLogin, "jane@example.com", domain.OTPHash("hash"), time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := repo.Fetch(ctx, domain.PurposeLogin, "jane@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}
}
