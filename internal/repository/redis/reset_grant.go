package redis

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/repository"
)

const defaultResetGrantPrefix = "reset-grant"

// ResetGrantRepository stores hashed password-reset grants in Redis. A grant
// bridges the verified reset passcode and the password change request and is
// removed on first use.
type ResetGrantRepository struct {
	client *red.Client
	prefix string
}

// NewResetGrantRepository constructs a grant repository with the provided key prefix.
func NewResetGrantRepository(client *red.Client, keyPrefix string) *ResetGrantRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultResetGrantPrefix
	}
	return &ResetGrantRepository{client: client, prefix: prefix}
}

// Store saves the grant hash for the email, replacing any previous grant.
func (r *ResetGrantRepository) Store(ctx context.Context, email, grantHash string, ttl time.Duration) error {
	email = domain.NormalizeEmail(email)
	switch {
	case email == "":
		return errors.New("email is required")
	case grantHash == "":
		return errors.New("grant hash is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	if err := r.client.Set(ctx, r.key(email), grantHash, ttl).Err(); err != nil {
		return fmt.Errorf("redis store reset grant: %w", err)
	}
	return nil
}

// Consume validates the grant hash and deletes it in the same call. A missing
// or mismatched grant maps onto repository.ErrNotFound.
func (r *ResetGrantRepository) Consume(ctx context.Context, email, grantHash string) error {
	email = domain.NormalizeEmail(email)
	if email == "" || grantHash == "" {
		return repository.ErrNotFound
	}

	stored, err := r.client.GetDel(ctx, r.key(email)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("redis consume reset grant: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(grantHash)) != 1 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *ResetGrantRepository) key(email string) string {
	return fmt.Sprintf("%s:%s", r.prefix, email)
}

var _ port.ResetGrantStore = (*ResetGrantRepository)(nil)
