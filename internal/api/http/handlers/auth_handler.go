package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/authkit/auth-service/internal/api/dto"
	"github.com/authkit/auth-service/internal/auth"
	"github.com/authkit/auth-service/internal/service"
	apperrors "github.com/authkit/auth-service/pkg/util/errorutil"
)

// AuthHandler exposes login, registration and token endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}

	result, err := h.auth.Login(c.UserContext(), req.UsernameOrEmail, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": authResponse(result)})
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}

	result, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authResponse(result)})
}

// Validate handles POST /api/auth/validate.
func (h *AuthHandler) Validate(c *fiber.Ctx) error {
	status := h.auth.Validate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if !status.Valid {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"data": dto.ValidateResponse{Valid: false}})
	}
	return c.JSON(fiber.Map{"data": dto.ValidateResponse{
		Valid:    true,
		Username: status.Subject,
		Role:     string(status.Role),
	}})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	result, err := h.auth.Refresh(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": authResponse(result)})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}
	user, err := h.auth.CurrentUser(c.UserContext(), caller)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

func authResponse(result *service.LoginResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     result.Token,
		Type:      result.TokenType,
		ExpiresAt: result.ExpiresAt,
		ExpiresIn: result.ExpiresIn.Milliseconds(),
		User: dto.UserResponse{
			ID:       result.User.ID,
			Username: result.User.Username,
			Email:    result.User.Email,
			Role:     string(result.User.Role),
		},
	}
}
