package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/middleware"
	"github.com/iliyamo/eventhub/internal/service"
)

// AdminHandler serves the ADMIN-only user management endpoints.
type AdminHandler struct {
	Users *service.UserService
}

func NewAdminHandler(users *service.UserService) *AdminHandler {
	return &AdminHandler{Users: users}
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

type roleReq struct {
	Role string `json:"role" validate:"required"`
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.Users.ListUsers(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// SetStatus activates or disables a user; disabling ends their sessions.
func (h *AdminHandler) SetStatus(c echo.Context) error {
	var req statusReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sum, err := h.Users.SetStatus(ctx, c.Param("id"), req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *AdminHandler) SetRole(c echo.Context) error {
	var req roleReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sum, err := h.Users.SetRole(ctx, c.Param("id"), req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Users.DeleteUser(ctx, middleware.UserID(c), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
