package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/authkit/auth-service/internal/auth"
	"github.com/authkit/auth-service/internal/domain"
	"github.com/authkit/auth-service/internal/events"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindByUsernameOrEmail(ctx context.Context, key string) (*domain.User, error) {
	args := m.Called(ctx, key)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	saved, _ := args.Get(0).(*domain.User)
	return saved, args.Error(1)
}

type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) Hash(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *mockHasher) Verify(plaintext, hash string) bool {
	args := m.Called(plaintext, hash)
	return args.Bool(0)
}

var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type recorder struct {
	events []events.Event
}

func (r *recorder) subscribe(d events.Dispatcher) {
	for _, t := range events.AllEventTypes() {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			r.events = append(r.events, e)
			return nil
		})
	}
}

func (r *recorder) types() []events.EventType {
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store    *mockStore
	hasher   *mockHasher
	tokens   *auth.TokenManager
	recorder *recorder
	svc      *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		TTL:        24 * time.Hour,
	})
	require.NoError(t, err)
	tokens = tokens.WithClock(func() time.Time { return testNow })

	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	rec.subscribe(dispatcher)

	f := &fixture{
		store:    &mockStore{},
		hasher:   &mockHasher{},
		tokens:   tokens,
		recorder: rec,
	}
	f.svc = NewAuthService(AuthDependencies{
		Users:  f.store,
		Hasher: f.hasher,
		Tokens: tokens,
		Events: dispatcher,
	})
	return f
}

func aliceRecord() *domain.User {
	return &domain.User{
		ID:           "u-1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash-of-correct",
		Role:         domain.RoleUser,
		Enabled:      true,
	}
}
