package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-rfid-admin/internal/config"
	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository/memory"
	"github.com/iliyamo/school-rfid-admin/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, u model.User) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, time.Hour, u)
	require.NoError(t, err)
	return tok.Token
}

func newServer(t *testing.T, enabled *bool) (*echo.Echo, *model.School, *model.School) {
	t.Helper()
	ctx := context.Background()
	schools := memory.NewSchoolStore(memory.Open())
	open := &model.School{Name: "Open"}
	closed := &model.School{Name: "Closed", Disabled: true}
	require.NoError(t, schools.Create(ctx, open))
	require.NoError(t, schools.Create(ctx, closed))

	e := echo.New()
	e.Logger.SetLevel(log.OFF)
	ok := func(c echo.Context) error {
		return c.String(http.StatusOK, ClaimsFrom(c).ID)
	}
	chain := []echo.MiddlewareFunc{
		JWTAuth(secret, schools),
		RequireRole(model.RoleAdmin, model.RoleSuperAdmin),
		AccessControl(func() bool { return *enabled }),
	}
	e.GET("/students/:schoolId", ok, chain...)
	e.GET("/schools", ok, chain...)
	e.DELETE("/students/:schoolId", ok, JWTAuth(secret, schools), RequireRole(model.RoleSuperAdmin))
	return e, open, closed
}

func TestAuthChain(t *testing.T) {
	enabled := true
	e, open, closed := newServer(t, &enabled)

	admin := model.User{ID: "admin-1", Role: model.RoleAdmin, SchoolID: &open.ID}
	disabledAdmin := model.User{ID: "admin-2", Role: model.RoleAdmin, SchoolID: &closed.ID}
	super := model.User{ID: "root", Role: model.RoleSuperAdmin}
	stranger := model.User{ID: "x", Role: "teacher"}
	expired, err := utils.NewAccessToken(secret, -time.Minute, super)
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   string
		path     string
		header   string
		wantCode int
		wantBody string
	}{
		{"no header", http.MethodGet, "/schools", "", http.StatusUnauthorized, "Authentication failed"},
		{"not bearer", http.MethodGet, "/schools", "Basic abc", http.StatusUnauthorized, "Authentication failed"},
		{"garbage token", http.MethodGet, "/schools", "Bearer abc", http.StatusUnauthorized, "Authentication failed"},
		{"expired token", http.MethodGet, "/schools", "Bearer " + expired.Token, http.StatusUnauthorized, "Authentication failed"},
		{"wrong secret", http.MethodGet, "/schools", "Bearer " + signWith(t, "other", super), http.StatusUnauthorized, "Authentication failed"},
		{"disabled school", http.MethodGet, "/schools", "Bearer " + token(t, disabledAdmin), http.StatusForbidden, "Account deactivated"},
		{"unknown role", http.MethodGet, "/schools", "Bearer " + token(t, stranger), http.StatusForbidden, "Access denied"},
		{"admin own school", http.MethodGet, "/students/" + open.ID, "Bearer " + token(t, admin), http.StatusOK, "admin-1"},
		{"admin other school", http.MethodGet, "/students/" + closed.ID, "Bearer " + token(t, admin), http.StatusForbidden, "Access denied: School mismatch"},
		{"superadmin any school", http.MethodGet, "/students/" + closed.ID, "Bearer " + token(t, super), http.StatusOK, "root"},
		{"admin on superadmin route", http.MethodDelete, "/students/" + open.ID, "Bearer " + token(t, admin), http.StatusForbidden, "Access denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestAccessControl(t *testing.T) {
	enabled := false
	e, _, _ := newServer(t, &enabled)
	super := model.User{ID: "root", Role: model.RoleSuperAdmin}

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/schools", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, super))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do()
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Server access is currently disabled by the super admin")

	enabled = true
	assert.Equal(t, http.StatusOK, do().Code, "the flag is read on every request")
}

func TestRateLimiter_localFallback(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.Logger.SetLevel(log.OFF)
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewRateLimiter(cfg, nil))

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	rec := hit("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusOK, hit("10.0.0.2").Code, "buckets are per client")
}

func TestRateLimiter_disabled(t *testing.T) {
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewRateLimiter(config.RateLimitConfig{Enabled: false}, nil))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func signWith(t *testing.T, key string, u model.User) string {
	t.Helper()
	tok, err := utils.NewAccessToken(key, time.Hour, u)
	require.NoError(t, err)
	return tok.Token
}
