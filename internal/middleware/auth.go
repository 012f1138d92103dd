package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/model"
)

// AccessVerifier checks an access token and returns its subject, role and email.
type AccessVerifier interface {
	VerifyAccessToken(raw string) (userID string, role model.Role, email string, ok bool)
}

// BearerAuth validates the Bearer access token and stores the caller's
// identity in the echo context under user_id, role and email.
func BearerAuth(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, found := strings.Cut(auth, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			uid, role, email, ok := v.VerifyAccessToken(strings.TrimSpace(raw))
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ctxUserID, uid)
			c.Set(ctxRole, string(role))
			c.Set(ctxEmail, email)
			return next(c)
		}
	}
}
