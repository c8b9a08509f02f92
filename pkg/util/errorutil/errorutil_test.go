package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	unauthorized := NewUnauthorized("invalid token")
	wrapped := fmt.Errorf("handler: %w", unauthorized)
	de := ToDomainError(wrapped)
	assert.Equal(t, "UNAUTHORIZED", de.Code)
	assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)

	de = ToDomainError(fiber.NewError(http.StatusNotFound, "Cannot GET /nope"))
	assert.Equal(t, "NOT_FOUND", de.Code)
	assert.Equal(t, "Cannot GET /nope", de.Message)

	cause := errors.New("boom")
	de = ToDomainError(cause)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.ErrorIs(t, de, cause)
}

func TestDomainErrorMessageIncludesCause(t *testing.T) {
	err := NewUnavailable(errors.New("dial tcp: refused"))
	assert.Equal(t, "service temporarily unavailable: dial tcp: refused", err.Error())
}
