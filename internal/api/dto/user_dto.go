package dto

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/authkit/auth-service/internal/domain"
)

// UserResponse is the public view of a user record.
type UserResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	Enabled   *bool      `json:"enabled,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// NewUserResponse maps a full user record.
func NewUserResponse(u *domain.User) UserResponse {
	enabled := u.Enabled
	resp := UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     string(u.Role),
		Enabled:  &enabled,
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

// SetEnabledRequest toggles an account.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// Validate requires the flag to be present.
func (r SetEnabledRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Enabled, validation.NotNil),
	)
}

// ChangePasswordRequest sets a new password for a user.
type ChangePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// Validate checks the new password.
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 100)),
	)
}
