package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"email":         event.Email,
		"registered_at": event.RegisteredAt,
	}
	p.logEvent("user.registered", event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishUserVerified logs user.verified events.
func (p *StubPublisher) PublishUserVerified(_ context.Context, event domain.UserVerifiedEvent) error {
	payload := map[string]any{
		"user_id":     event.UserID,
		"email":       event.Email,
		"verified_at": event.VerifiedAt,
	}
	p.logEvent("user.verified", event.UserID, event.VerifiedAt, payload)
	return nil
}

// PublishPasswordChanged logs user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"changed_at": event.ChangedAt,
		"reason":     event.Reason,
	}
	p.logEvent("user.password.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishUserLoggedOut logs user.logged_out events.
func (p *StubPublisher) PublishUserLoggedOut(_ context.Context, event domain.UserLoggedOutEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"logged_out_at": event.LoggedOutAt,
	}
	p.logEvent("user.logged_out", event.UserID, event.LoggedOutAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
