package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tracklite-io/tracklite/internal/api/dto"
	"github.com/tracklite-io/tracklite/internal/domain"
	"github.com/tracklite-io/tracklite/internal/service"
	apperrors "github.com/tracklite-io/tracklite/pkg/util"
)

// UsersHandler covers registration, login and admin account provisioning.
type UsersHandler struct {
	service *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{service: authService}
}

// Register POST /auth/register. Public, always creates a requester.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		return apperrors.NewValidationError("name, email and a password of at least 8 characters are required", nil)
	}
	user, token, exp, err := h.service.Register(c.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"user": fiber.Map{"id": user.ID, "name": user.Name, "email": user.Email, "role": user.Role},
		"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
	}})
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	user, token, exp, err := h.service.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"user": fiber.Map{"id": user.ID, "name": user.Name, "email": user.Email, "role": user.Role},
		"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
	}})
}

// CreateAccount POST /users. Admin provisions developers and admins.
func (h *UsersHandler) CreateAccount(c *fiber.Ctx) error {
	var req dto.CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return apperrors.NewValidationError("unknown role", map[string]any{"role": req.Role})
	}
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		return apperrors.NewValidationError("name, email and a password of at least 8 characters are required", nil)
	}
	user, _, _, err := h.service.CreateAccount(c.Context(), req.Name, req.Email, req.Password, role)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"id": user.ID, "name": user.Name, "email": user.Email, "role": user.Role,
	}})
}
