package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/middleware"
)

// ListSessions returns the caller's active sessions, newest first.
func (h *AuthHandler) ListSessions(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	sessions, err := h.Auth.ListSessions(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessions)
}

// RevokeSession ends one of the caller's sessions by id.
func (h *AuthHandler) RevokeSession(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Auth.RevokeSession(ctx, middleware.UserID(c), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
