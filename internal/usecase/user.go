package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/repository"
)

// UpdateProfileInput carries the mutable profile fields. Nil pointers leave
// the current value in place.
type UpdateProfileInput struct {
	FirstName    *string
	LastName     *string
	Phone        *string
	City         *string
	State        *string
	Country      *string
	Pincode      *string
	ProfileImage *string
}

// UserService serves profile reads and updates.
type UserService struct {
	users  port.UserRepository
	logger *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(users port.UserRepository, log *zap.Logger) *UserService {
	return &UserService{users: users, logger: log}
}

// GetProfile returns the user record without secret fields.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return user, nil
}

// UpdateProfile applies the provided changes and returns the updated record.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		if *input.FirstName == "" {
			return nil, fmt.Errorf("first name is required")
		}
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}
	if input.City != nil {
		user.Address.City = *input.City
	}
	if input.State != nil {
		user.Address.State = *input.State
	}
	if input.Country != nil {
		user.Address.Country = *input.Country
	}
	if input.Pincode != nil {
		user.Address.Pincode = *input.Pincode
	}
	if input.ProfileImage != nil {
		user.ProfileImage = *input.ProfileImage
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.UpdateProfile(ctx, *user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}
