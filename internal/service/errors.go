package service

import "errors"

// Callers only ever see these coarse kinds; token and lookup details stay internal.
var (
	ErrInvalidCredentials = errors.New("invalid username/email or password")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrStoreUnavailable   = errors.New("credential store unavailable")
)
