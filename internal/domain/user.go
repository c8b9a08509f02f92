package domain

import "time"

// Role is the authorization level carried in issued tokens.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// DefaultRole is assigned to self-registered accounts.
const DefaultRole = RoleUser

// User is the canonical credential record owned by the user store.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credentials is the narrow view of a user record needed to authenticate it.
type Credentials interface {
	GetUsername() string
	GetPasswordHash() string
	GetRole() Role
	IsEnabled() bool
}

func (u *User) GetUsername() string     { return u.Username }
func (u *User) GetPasswordHash() string { return u.PasswordHash }
func (u *User) GetRole() Role           { return u.Role }
func (u *User) IsEnabled() bool         { return u.Enabled }
