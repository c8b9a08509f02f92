package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/authkit/auth-service/internal/domain"
	apperrors "github.com/authkit/auth-service/pkg/util/errorutil"
)

const callerKey = "auth_caller"

type callerCtxKey struct{}

// RequestVerifier turns a raw Authorization header value into a caller.
type RequestVerifier interface {
	VerifyRequestToken(ctx context.Context, rawHeaderValue string) (domain.AuthenticatedContext, error)
}

// AuthMiddleware validates bearer tokens and attaches the caller to the request.
type AuthMiddleware struct {
	verifier RequestVerifier
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(verifier RequestVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Handle enforces authentication for protected routes. Rejected requests
// never reach downstream handlers.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	caller, err := m.verifier.VerifyRequestToken(c.UserContext(), authHeader)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fiber.NewError(fiber.StatusRequestTimeout, "request cancelled")
		}
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(callerKey, caller)
	c.SetUserContext(ContextWithCaller(c.UserContext(), caller))
	return c.Next()
}

// CallerFromContext retrieves the authenticated caller of the request.
func CallerFromContext(c *fiber.Ctx) (domain.AuthenticatedContext, bool) {
	caller, ok := c.Locals(callerKey).(domain.AuthenticatedContext)
	return caller, ok
}

// ContextWithCaller stores the caller in a request-scoped context.
func ContextWithCaller(ctx context.Context, caller domain.AuthenticatedContext) context.Context {
	return context.WithValue(ctx, callerCtxKey{}, caller)
}

// CallerFrom returns the caller stored by ContextWithCaller.
func CallerFrom(ctx context.Context) (domain.AuthenticatedContext, bool) {
	caller, ok := ctx.Value(callerCtxKey{}).(domain.AuthenticatedContext)
	return caller, ok
}
