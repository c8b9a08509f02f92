package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/authkit/auth-service/internal/auth"
	"github.com/authkit/auth-service/internal/domain"
	"github.com/authkit/auth-service/internal/events"
	"github.com/authkit/auth-service/internal/repository"
)

// BearerPrefix is the optional scheme prefix stripped from Authorization values.
const BearerPrefix = "Bearer "

// CredentialStore is the part of user persistence the orchestrator depends on.
type CredentialStore interface {
	FindByUsernameOrEmail(ctx context.Context, key string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, user *domain.User) (*domain.User, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// UserSummary is the identity data returned alongside a token.
type UserSummary struct {
	ID       string
	Username string
	Email    string
	Role     domain.Role
}

// LoginResult carries a freshly minted token.
type LoginResult struct {
	Token     string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ExpiresIn time.Duration
	User      UserSummary
}

// RegisterInput holds the fields of a self-registration.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// TokenStatus describes the outcome of validating a presented token.
type TokenStatus struct {
	Valid   bool
	Subject string
	Role    domain.Role
}

// AuthService coordinates login, registration and per-request token verification.
// It keeps no per-call state and is safe for concurrent use.
type AuthService struct {
	users  CredentialStore
	hasher PasswordHasher
	tokens *auth.TokenManager
	events events.Dispatcher
	logger *zap.Logger
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	Users  CredentialStore
	Hasher PasswordHasher
	Tokens *auth.TokenManager
	Events events.Dispatcher
	Logger *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	if deps.Events == nil {
		deps.Events = events.NewNoopDispatcher()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AuthService{
		users:  deps.Users,
		hasher: deps.Hasher,
		tokens: deps.Tokens,
		events: deps.Events,
		logger: deps.Logger,
	}
}

// Login verifies a username-or-email and password pair and mints a token.
// Unknown, disabled and wrong-password accounts all yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*LoginResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("credential lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: find user: %w", ErrStoreUnavailable, err)
	}
	if user == nil {
		s.loginFailed(ctx, usernameOrEmail, "unknown_user")
		return nil, ErrInvalidCredentials
	}

	if !s.authenticate(user, password) {
		s.loginFailed(ctx, usernameOrEmail, "rejected")
		return nil, ErrInvalidCredentials
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded", zap.String("username", user.Username))
	s.publish(ctx, events.NewEvent(events.EventLoginSucceeded, user.Username, map[string]string{"role": string(user.Role)}))
	return result, nil
}

// Register creates a least-privileged account and mints a token for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	taken, err := s.users.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: check username: %w", ErrStoreUnavailable, err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	// Login resolves usernames before emails, so a username must not shadow an existing email.
	taken, err = s.users.ExistsByEmail(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: check username: %w", ErrStoreUnavailable, err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	taken, err = s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: check email: %w", ErrStoreUnavailable, err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.Save(ctx, &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         domain.DefaultRole,
		Enabled:      true,
	})
	switch {
	case errors.Is(err, repository.ErrDuplicateUsername):
		return nil, ErrUsernameTaken
	case errors.Is(err, repository.ErrDuplicateEmail):
		return nil, ErrEmailTaken
	case err != nil:
		s.logger.Error("saving user failed", zap.Error(err))
		return nil, fmt.Errorf("%w: save user: %w", ErrStoreUnavailable, err)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("username", user.Username))
	s.publish(ctx, events.NewEvent(events.EventUserRegistered, user.Username, map[string]string{"email": user.Email}))
	return result, nil
}

// VerifyRequestToken authenticates a raw Authorization header value. Every
// token failure is reported as ErrUnauthenticated.
func (s *AuthService) VerifyRequestToken(ctx context.Context, rawHeaderValue string) (domain.AuthenticatedContext, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuthenticatedContext{}, err
	}

	token := strings.TrimPrefix(rawHeaderValue, BearerPrefix)
	if token == "" {
		return domain.AuthenticatedContext{}, ErrUnauthenticated
	}

	identity, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		s.publish(ctx, events.NewEvent(events.EventTokenRejected, "", map[string]string{"reason": rejectionReason(err)}))
		return domain.AuthenticatedContext{}, ErrUnauthenticated
	}
	return identity.Context(), nil
}

// Validate reports whether a raw header value carries a valid token.
func (s *AuthService) Validate(ctx context.Context, rawHeaderValue string) TokenStatus {
	actx, err := s.VerifyRequestToken(ctx, rawHeaderValue)
	if err != nil {
		return TokenStatus{}
	}
	return TokenStatus{Valid: true, Subject: actx.Subject, Role: actx.Role}
}

// Refresh exchanges a still-valid token for a new one, re-reading the account
// so that disabled or deleted users cannot extend their access.
func (s *AuthService) Refresh(ctx context.Context, rawHeaderValue string) (*LoginResult, error) {
	actx, err := s.VerifyRequestToken(ctx, rawHeaderValue)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, actx.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: find user: %w", ErrStoreUnavailable, err)
	}
	if user == nil || !user.IsEnabled() {
		return nil, ErrUnauthenticated
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewEvent(events.EventTokenRefreshed, user.Username, nil))
	return result, nil
}

// CurrentUser loads the record of an authenticated caller.
func (s *AuthService) CurrentUser(ctx context.Context, actx domain.AuthenticatedContext) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	user, err := s.users.FindByUsernameOrEmail(ctx, actx.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: find user: %w", ErrStoreUnavailable, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// TokenManager exposes the underlying token manager.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

func (s *AuthService) authenticate(creds domain.Credentials, password string) bool {
	if !creds.IsEnabled() {
		return false
	}
	return s.hasher.Verify(password, creds.GetPasswordHash())
}

func (s *AuthService) issue(user *domain.User) (*LoginResult, error) {
	token, identity, err := s.tokens.Issue(domain.Identity{
		Subject: user.GetUsername(),
		Role:    user.GetRole(),
	}, s.tokens.TTL())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{
		Token:     token,
		TokenType: strings.TrimSpace(BearerPrefix),
		IssuedAt:  identity.IssuedAt,
		ExpiresAt: identity.ExpiresAt,
		ExpiresIn: identity.ExpiresAt.Sub(identity.IssuedAt),
		User: UserSummary{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Role:     user.Role,
		},
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, usernameOrEmail, reason string) {
	s.logger.Warn("login failed", zap.String("username", usernameOrEmail))
	s.publish(ctx, events.NewEvent(events.EventLoginFailed, usernameOrEmail, map[string]string{"reason": reason}))
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publishing auth event failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrTokenBadSignature):
		return "bad_signature"
	default:
		return "malformed"
	}
}
