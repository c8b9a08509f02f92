package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/authkit/auth-service/internal/domain"
)

// memoryUserRepository backs development runs without Postgres.
type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository returns an in-process implementation.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]domain.User)}
}

func (r *memoryUserRepository) FindByUsernameOrEmail(_ context.Context, key string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var byEmail *domain.User
	for _, u := range r.users {
		if u.Username == key {
			user := u
			return &user, nil
		}
		if u.Email == key && byEmail == nil {
			user := u
			byEmail = &user
		}
	}
	if byEmail == nil {
		return nil, ErrNotFound
	}
	return byEmail, nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memoryUserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conflict("", username, "") == ErrDuplicateUsername, nil
}

func (r *memoryUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conflict("", "", email) == ErrDuplicateEmail, nil
}

func (r *memoryUserRepository) Save(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := *user
	now := time.Now().UTC()
	if saved.ID == "" {
		saved.ID = uuid.NewString()
		saved.CreatedAt = now
	} else if existing, ok := r.users[saved.ID]; ok {
		saved.CreatedAt = existing.CreatedAt
	} else {
		return nil, ErrNotFound
	}
	if err := r.conflict(saved.ID, saved.Username, saved.Email); err != nil {
		return nil, err
	}
	saved.UpdatedAt = now
	r.users[saved.ID] = saved

	out := saved
	return &out, nil
}

func (r *memoryUserRepository) List(_ context.Context, enabledOnly bool) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		if enabledOnly && !u.Enabled {
			continue
		}
		user := u
		users = append(users, &user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *memoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// conflict mirrors the unique constraints of the users table.
func (r *memoryUserRepository) conflict(id, username, email string) error {
	for _, u := range r.users {
		if u.ID == id {
			continue
		}
		if username != "" && u.Username == username {
			return ErrDuplicateUsername
		}
		if email != "" && u.Email == email {
			return ErrDuplicateEmail
		}
	}
	return nil
}
