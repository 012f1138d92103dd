package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/middleware"
	"github.com/iliyamo/eventhub/internal/service"
)

// AuthHandler exposes the login flows, refresh and logout.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// ----- DTOs -----

type registerReq struct {
	Email      string `json:"email"      validate:"max=255"`
	Password   string `json:"password"   validate:"max=72"`
	DeviceID   string `json:"deviceId"   validate:"max=255"`
	DeviceName string `json:"deviceName"`
}

type loginReq struct {
	Email      string `json:"email"      validate:"max=255"`
	Password   string `json:"password"   validate:"max=128"`
	DeviceID   string `json:"deviceId"   validate:"max=255"`
	DeviceName string `json:"deviceName"`
}

type socialReq struct {
	Provider   string `json:"provider"`
	Token      string `json:"token"      validate:"max=4096"`
	DeviceID   string `json:"deviceId"   validate:"max=255"`
	DeviceName string `json:"deviceName"`
}

type passcodeReq struct {
	Passcode   string `json:"passcode"   validate:"max=512"`
	DeviceID   string `json:"deviceId"   validate:"max=255"`
	DeviceName string `json:"deviceName"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"max=512"`
	DeviceID     string `json:"deviceId"     validate:"max=255"`
}

// Register creates a password account and returns its first token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Auth.Register(ctx, req.Email, req.Password, req.DeviceID, req.DeviceName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password, req.DeviceID, req.DeviceName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Social(c echo.Context) error {
	var req socialReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Auth.SocialLogin(ctx, req.Provider, req.Token, req.DeviceID, req.DeviceName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) AdminPasscode(c echo.Context) error {
	var req passcodeReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Auth.AdminPasscodeLogin(ctx, req.Passcode, req.DeviceID, req.DeviceName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Refresh rotates the presented refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Auth.Refresh(ctx, req.RefreshToken, req.DeviceID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Logout ends every session of the authenticated user (protected).
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the identity summary of the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	sum, err := h.Auth.Me(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}
