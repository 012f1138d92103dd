// Package router registers the HTTP routes on an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/handler"
	"github.com/iliyamo/eventhub/internal/middleware"
	"github.com/iliyamo/eventhub/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints. The unauthenticated flows
// under /v1/auth run behind limiter; everything else needs a bearer token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, verifier middleware.AccessVerifier, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	g.POST("/social", a.Social, limiter)
	g.POST("/admin/passcode", a.AdminPasscode, limiter)
	g.POST("/refresh", a.Refresh, limiter)
	g.POST("/logout", a.Logout, middleware.BearerAuth(verifier))

	auth := e.Group("/v1", middleware.BearerAuth(verifier))
	auth.GET("/me", a.Me)
	auth.GET("/sessions", a.ListSessions)
	auth.DELETE("/sessions/:id", a.RevokeSession)
}

// RegisterAdmin registers the user management endpoints for ADMIN callers.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, verifier middleware.AccessVerifier) {
	g := e.Group("/v1/admin", middleware.BearerAuth(verifier), middleware.RequireRole(model.RoleAdmin))
	g.GET("/users", h.ListUsers)
	g.PATCH("/users/:id/status", h.SetStatus)
	g.PATCH("/users/:id/role", h.SetRole)
	g.DELETE("/users/:id", h.DeleteUser)
}
