package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/eventhub/internal/config"
	"github.com/iliyamo/eventhub/internal/model"
)

type stubVerifier map[string]model.Role

func (s stubVerifier) VerifyAccessToken(raw string) (string, model.Role, string, bool) {
	role, ok := s[raw]
	if !ok {
		return "", "", "", false
	}
	return "user-" + raw, role, raw + "@x.com", true
}

func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"id": UserID(c), "role": Role(c), "email": Email(c)})
}

func serve(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBearerAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, BearerAuth(stubVerifier{"good": model.RoleUser}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
		{"scheme is case-insensitive", "bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/me", tc.header)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"user-good","role":"USER","email":"good@x.com"}`, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	v := stubVerifier{"admin": model.RoleAdmin, "user": model.RoleUser}
	e.GET("/admin", whoami, BearerAuth(v), RequireRole(model.RoleAdmin))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/admin", "Bearer admin").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin", "Bearer user").Code)

	anon := echo.New()
	anon.GET("/admin", whoami, RequireRole(model.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, serve(anon, http.MethodGet, "/admin", "").Code)
}

func rateLimited(t *testing.T, cfg config.RateLimitConfig) (*echo.Echo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.POST("/login", ok, NewTokenBucket(cfg, rdb))
	e.POST("/register", ok, NewTokenBucket(cfg, rdb))
	return e, mr
}

func bucketConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       3,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            10 * time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	e, _ := rateLimited(t, bucketConfig())

	for i := 0; i < 3; i++ {
		rec := serve(e, http.MethodPost, "/login", "")
		require.Equal(t, http.StatusNoContent, rec.Code, "request %d", i)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(2-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := serve(e, http.MethodPost, "/login", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 3500)

	// ip_route keys each route separately
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/register", "").Code)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	e, mr := rateLimited(t, bucketConfig())
	mr.Close()

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/login", "").Code)
	}
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := bucketConfig()
	cfg.Enabled = false
	e, mr := rateLimited(t, cfg)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/login", "").Code)
	}
	assert.Empty(t, mr.Keys())
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/auth/login")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:ip:10.0.0.7:route:POST /v1/auth/login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
	c.Set(ctxUserID, "u1")
	assert.Equal(t, "rl:user:u1", buildRateKey(cfg, c))

	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.7:user:u1:route:POST /v1/auth/login", buildRateKey(cfg, c))
}
