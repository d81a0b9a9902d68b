package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/repository"
)

const (
	defaultOTPPrefix = "otp"

	fieldCodeHash  = "code_hash"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
)

// OTPRepository persists hashed one-time passcodes in Redis keyed by
// (purpose, email). Storing a new code deletes any prior entry in the same
// transaction, so at most one live code exists per pair.
type OTPRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewOTPRepository constructs a new OTP repository with the provided Redis client and key prefix.
func NewOTPRepository(client *red.Client, keyPrefix string) *OTPRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultOTPPrefix
	}

	return &OTPRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *OTPRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Store persists a hashed code with the supplied purpose/email and TTL,
// replacing any previous entry for the pair.
func (r *OTPRepository) Store(ctx context.Context, purpose domain.OTPPurpose, email string, codeHash domain.OTPHash, ttl time.Duration) (*port.OTPRecord, error) {
	email = domain.NormalizeEmail(email)

	switch {
	case !purpose.IsValid():
		return nil, fmt.Errorf("unknown otp purpose %q", purpose)
	case email == "":
		return nil, errors.New("email is required")
	case codeHash == "":
		return nil, errors.New("code hash is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	}

	now := r.now().UTC()
	expiresAt := now.Add(ttl)

	key := r.key(purpose, email)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCodeHash:  string(codeHash),
		fieldCreatedAt: strconv.FormatInt(now.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(expiresAt.Unix(), 10),
		fieldAttempts:  "0",
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis store otp: %w", err)
	}

	return &port.OTPRecord{
		Purpose:   purpose,
		Email:     email,
		CodeHash:  codeHash,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

// Fetch retrieves the record for the provided purpose and email.
func (r *OTPRepository) Fetch(ctx context.Context, purpose domain.OTPPurpose, email string) (*port.OTPRecord, error) {
	email = domain.NormalizeEmail(email)
	key := r.key(purpose, email)
	if key == "" {
		return nil, errors.New("purpose and email are required")
	}

	values, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall otp: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	codeHash := strings.TrimSpace(values[fieldCodeHash])
	if codeHash == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	attempts := 0
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			attempts = v
		}
	}

	return &port.OTPRecord{
		Purpose:   purpose,
		Email:     email,
		CodeHash:  domain.OTPHash(codeHash),
		Attempts:  attempts,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// IncrementAttempts increments the attempt counter and returns the new value.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, purpose domain.OTPPurpose, email string) (int, error) {
	if _, err := r.Fetch(ctx, purpose, email); err != nil {
		return 0, err
	}

	key := r.key(purpose, domain.NormalizeEmail(email))
	count, err := r.client.HIncrBy(ctx, key, fieldAttempts, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby otp attempts: %w", err)
	}

	return int(count), nil
}

// Delete removes the entry, enforcing single-use semantics.
func (r *OTPRepository) Delete(ctx context.Context, purpose domain.OTPPurpose, email string) error {
	key := r.key(purpose, domain.NormalizeEmail(email))
	if key == "" {
		return errors.New("purpose and email are required")
	}

	deleted, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis delete otp: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *OTPRepository) key(purpose domain.OTPPurpose, email string) string {
	if !purpose.IsValid() || email == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s", r.prefix, purpose, email)
}

func parseUnix(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(seconds, 0).UTC(), nil
}

var _ port.OTPStore = (*OTPRepository)(nil)
