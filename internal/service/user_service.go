package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/authkit/auth-service/internal/domain"
	"github.com/authkit/auth-service/internal/events"
	"github.com/authkit/auth-service/internal/repository"
)

// UserService implements administrative account management.
type UserService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	events events.Dispatcher
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, hasher PasswordHasher, dispatcher events.Dispatcher, logger *zap.Logger) *UserService {
	if dispatcher == nil {
		dispatcher = events.NewNoopDispatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, hasher: hasher, events: dispatcher, logger: logger}
}

// List returns all users, or only enabled ones.
func (s *UserService) List(ctx context.Context, enabledOnly bool) ([]*domain.User, error) {
	users, err := s.users.List(ctx, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %w", ErrStoreUnavailable, err)
	}
	return users, nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return user, nil
}

// SetEnabled toggles whether the account may log in.
func (s *UserService) SetEnabled(ctx context.Context, id string, enabled bool) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Enabled = enabled

	saved, err := s.users.Save(ctx, user)
	if err != nil {
		return nil, mapLookupError(err)
	}

	eventType := events.EventUserDisabled
	if enabled {
		eventType = events.EventUserEnabled
	}
	s.publish(ctx, events.NewEvent(eventType, saved.Username, map[string]string{"user_id": saved.ID}))
	return saved, nil
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return mapLookupError(err)
	}
	s.publish(ctx, events.NewEvent(events.EventUserDeleted, user.Username, map[string]string{"user_id": id}))
	return nil
}

// ChangePassword stores a new password hash for the user.
func (s *UserService) ChangePassword(ctx context.Context, id, newPassword string) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	saved, err := s.users.Save(ctx, user)
	if err != nil {
		return nil, mapLookupError(err)
	}
	s.logger.Info("password changed", zap.String("username", saved.Username))
	return saved, nil
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publishing user event failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func mapLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
