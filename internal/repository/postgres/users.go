package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/repository"
)

const uniqueViolationCode = "23505"

var userColumns = []string{
	"id",
	"first_name",
	"last_name",
	"email",
	"phone",
	"city",
	"state",
	"country",
	"pincode",
	"profile_image",
	"role",
	"is_verified",
	"otp_locked_until",
	"created_at",
	"updated_at",
}

// userSecretColumns extends userColumns with the credential columns. Only the
// WithSecrets lookups select them.
var userSecretColumns = append(append([]string{}, userColumns...),
	"password_hash",
	"refresh_token_hash",
)

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row. Emails are stored normalized and collide
// case-insensitively; a collision maps onto repository.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	query := r.builder.Insert("todo.users").
		Columns(
			"id",
			"first_name",
			"last_name",
			"email",
			"phone",
			"city",
			"state",
			"country",
			"pincode",
			"profile_image",
			"role",
			"is_verified",
			"password_hash",
			"created_at",
			"updated_at",
		).
		Values(
			user.ID,
			user.FirstName,
			user.LastName,
			domain.NormalizeEmail(user.Email),
			user.Phone,
			user.Address.City,
			user.Address.State,
			user.Address.Country,
			user.Address.Pincode,
			user.ProfileImage,
			user.Role,
			user.IsVerified,
			string(user.PasswordHash),
			user.CreatedAt,
			user.UpdatedAt,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier with the secret columns left empty.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, false)
}

// GetByIDWithSecrets retrieves a user by identifier including credential columns.
func (r *UserRepository) GetByIDWithSecrets(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, true)
}

// GetByEmail retrieves a user by normalized email with the secret columns left empty.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": domain.NormalizeEmail(email)}, false)
}

// GetByEmailWithSecrets retrieves a user by normalized email including credential columns.
func (r *UserRepository) GetByEmailWithSecrets(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": domain.NormalizeEmail(email)}, true)
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Eq, withSecrets bool) (*domain.User, error) {
	columns := userColumns
	if withSecrets {
		columns = userSecretColumns
	}

	stmt, args, err := r.builder.
		Select(columns...).
		From("todo.users").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		user             domain.User
		phone            sql.NullString
		city             sql.NullString
		state            sql.NullString
		country          sql.NullString
		pincode          sql.NullString
		profileImage     sql.NullString
		otpLockedUntil   *time.Time
		passwordHash     string
		refreshTokenHash sql.NullString
	)

	dest := []any{
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&phone,
		&city,
		&state,
		&country,
		&pincode,
		&profileImage,
		&user.Role,
		&user.IsVerified,
		&otpLockedUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	}
	if withSecrets {
		dest = append(dest, &passwordHash, &refreshTokenHash)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.Phone = phone.String
	user.Address = domain.Address{
		City:    city.String,
		State:   state.String,
		Country: country.String,
		Pincode: pincode.String,
	}
	user.ProfileImage = profileImage.String
	user.OTPLockedUntil = otpLockedUntil

	if withSecrets {
		user.PasswordHash = domain.PasswordHash(passwordHash)
		if refreshTokenHash.Valid {
			val := refreshTokenHash.String
			user.RefreshTokenHash = &val
		}
	}

	return &user, nil
}

// UpdateProfile persists the mutable profile fields. Credential columns and
// verification state are untouched.
func (r *UserRepository) UpdateProfile(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.
		Update("todo.users").
		Set("first_name", user.FirstName).
		Set("last_name", user.LastName).
		Set("phone", user.Phone).
		Set("city", user.Address.City).
		Set("state", user.Address.State).
		Set("country", user.Address.Country).
		Set("pincode", user.Address.Pincode).
		Set("profile_image", user.ProfileImage).
		Set("updated_at", user.UpdatedAt).
		Where(squirrel.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update profile sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, hash domain.PasswordHash, changedAt time.Time) error {
	stmt, args, err := r.builder.
		Update("todo.users").
		Set("password_hash", string(hash)).
		Set("updated_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// MarkVerified flips the verification flag after OTP confirmation.
func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Update("todo.users").
		Set("is_verified", true).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark verified sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetRefreshTokenHash stores the digest of the current refresh token, or
// clears it when hash is nil. The column holds one value, so issuing a new
// session invalidates the previous refresh token.
func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	stmt, args, err := r.builder.
		Update("todo.users").
		Set("refresh_token_hash", hash).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set refresh token hash sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set refresh token hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetOTPLock sets or clears the OTP verification lockout deadline.
func (r *UserRepository) SetOTPLock(ctx context.Context, id string, until *time.Time) error {
	stmt, args, err := r.builder.
		Update("todo.users").
		Set("otp_locked_until", until).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set otp lock sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set otp lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
