package handlers

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/authkit/auth-service/internal/service"
	apperrors "github.com/authkit/auth-service/pkg/util/errorutil"
)

// mapServiceError converts service sentinels into HTTP-facing domain errors.
func mapServiceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorized(service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		return apperrors.NewUnauthorized("invalid token")
	case errors.Is(err, service.ErrPasswordMismatch):
		return apperrors.NewValidationError(service.ErrPasswordMismatch.Error(), nil)
	case errors.Is(err, service.ErrUsernameTaken):
		return apperrors.NewConflict(service.ErrUsernameTaken.Error())
	case errors.Is(err, service.ErrEmailTaken):
		return apperrors.NewConflict(service.ErrEmailTaken.Error())
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.NewNotFound("user")
	case errors.Is(err, service.ErrStoreUnavailable):
		return apperrors.NewUnavailable(err)
	default:
		return apperrors.NewInternalError(err)
	}
}

// validationError reports ozzo field errors as details.
func validationError(err error) error {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			details[field] = fieldErr.Error()
		}
		return apperrors.NewValidationError("invalid payload", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}
