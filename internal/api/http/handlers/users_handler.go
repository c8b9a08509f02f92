package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/authkit/auth-service/internal/api/dto"
	"github.com/authkit/auth-service/internal/auth"
	"github.com/authkit/auth-service/internal/service"
	apperrors "github.com/authkit/auth-service/pkg/util/errorutil"
)

const defaultAuditLimit = 50

// UsersHandler exposes profile and administrative user endpoints.
type UsersHandler struct {
	auth  *service.AuthService
	users *service.UserService
	audit *service.AuditService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, users *service.UserService, audit *service.AuditService) *UsersHandler {
	return &UsersHandler{auth: authService, users: users, audit: audit}
}

// Profile handles GET /api/users/profile.
func (h *UsersHandler) Profile(c *fiber.Ctx) error {
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

// List handles GET /api/users/all?enabled=true.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.List(c.UserContext(), c.QueryBool("enabled", false))
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewUserResponse(u))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Get handles GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// SetEnabled handles PUT /api/users/:id/enabled.
func (h *UsersHandler) SetEnabled(c *fiber.Ctx) error {
	var req dto.SetEnabledRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}

	user, err := h.users.SetEnabled(c.UserContext(), c.Params("id"), *req.Enabled)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ChangePassword handles PUT /api/users/:id/password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}

	user, err := h.users.ChangePassword(c.UserContext(), c.Params("id"), req.NewPassword)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Delete handles DELETE /api/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	if err := h.users.Delete(c.UserContext(), c.Params("id")); err != nil {
		return mapServiceError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Audit handles GET /api/users/audit?limit=N.
func (h *UsersHandler) Audit(c *fiber.Ctx) error {
	limit, err := strconv.ParseInt(c.Query("limit", strconv.Itoa(defaultAuditLimit)), 10, 64)
	if err != nil || limit <= 0 {
		return apperrors.NewValidationError("limit must be a positive integer", nil)
	}
	recent, err := h.audit.Recent(c.UserContext(), limit)
	if err != nil {
		return apperrors.NewUnavailable(err)
	}
	return c.JSON(fiber.Map{"data": recent})
}
