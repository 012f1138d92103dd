package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/eventhub/internal/apperr"
	"github.com/iliyamo/eventhub/internal/repository"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{apperr.Validation("email is required"), http.StatusBadRequest, `{"error":"email is required"}`},
		{fmt.Errorf("wrapped: %w", apperr.Unauthorized("invalid credentials")), http.StatusUnauthorized, `{"error":"invalid credentials"}`},
		{fmt.Errorf("find: %w", repository.ErrNotFound), http.StatusNotFound, `{"error":"not found"}`},
		{repository.ErrForbidden, http.StatusForbidden, `{"error":"forbidden"}`},
		{fmt.Errorf("issue: %w", repository.ErrConflict), http.StatusConflict, `{"error":"conflict"}`},
		{errors.New("connection reset"), http.StatusInternalServerError, `{"error":"internal error"}`},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, respondError(c, tc.err))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestBind(t *testing.T) {
	e := echo.New()
	e.Validator = NewRequestValidator()

	newCtx := func(body string) echo.Context {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return e.NewContext(req, httptest.NewRecorder())
	}

	var ok statusReq
	require.NoError(t, bind(newCtx(`{"status":"DISABLED"}`), &ok))
	assert.Equal(t, "DISABLED", ok.Status)

	var missing statusReq
	err := bind(newCtx(`{}`), &missing)
	assert.True(t, apperr.IsValidation(err))

	var broken statusReq
	err = bind(newCtx(`{"status":`), &broken)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, "invalid body", err.Error())
}
