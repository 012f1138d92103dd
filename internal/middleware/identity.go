package middleware

import "github.com/labstack/echo/v4"

// Context keys written by BearerAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxEmail  = "email"
)

// UserID returns the authenticated user id, or "" when the request is anonymous.
func UserID(c echo.Context) string {
	s, _ := c.Get(ctxUserID).(string)
	return s
}

// Role returns the authenticated user's role, or "".
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

// Email returns the authenticated user's email, or "".
func Email(c echo.Context) string {
	s, _ := c.Get(ctxEmail).(string)
	return s
}
