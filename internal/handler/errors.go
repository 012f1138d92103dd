package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/apperr"
	"github.com/iliyamo/eventhub/internal/logger"
	"github.com/iliyamo/eventhub/internal/repository"
)

// requestTimeout bounds the storage work of a single request.
const requestTimeout = 5 * time.Second

// RequestValidator adapts go-playground/validator to echo.Validator.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New()}
}

func (r *RequestValidator) Validate(i interface{}) error {
	return r.v.Struct(i)
}

// bind decodes and validates the request body into dst.
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("invalid body")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(dst); err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid request", Cause: err}
	}
	return nil
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respondError maps service and storage errors onto HTTP responses.
func respondError(c echo.Context, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae) && ae.Kind == apperr.KindValidation:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ae.Message})
	case errors.As(err, &ae) && ae.Kind == apperr.KindUnauthorized:
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": ae.Message})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	default:
		logger.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
