package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"academyhub/config"
	"academyhub/database/dbtest"
	"academyhub/middleware"
	"academyhub/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTestConfig(t *testing.T) {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig = &config.Config{JWTSecret: "test-secret", JWTExpiresIn: time.Hour}
	t.Cleanup(func() { config.AppConfig = prev })
}

func TestGenerateAndParseToken(t *testing.T) {
	useTestConfig(t)
	academyID := "4f1c0b3e-2f55-4d5e-9c1a-6b7d8e9f0a1b"
	user := &models.User{Email: "owner@example.test", Role: models.RoleOwner, AcademyID: &academyID}
	user.ID = "0e6f3a52-8f7b-4b44-9d0e-1f2a3b4c5d6e"

	token, err := middleware.GenerateToken(user)
	require.NoError(t, err)

	claims, err := middleware.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, academyID, claims.AcademyID)
	assert.Equal(t, models.RoleOwner, claims.Role)
	assert.NotEmpty(t, claims.ID, "tokens carry a jti for revocation")

	config.AppConfig.JWTSecret = "rotated"
	_, err = middleware.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	useTestConfig(t)
	claims := &middleware.Claims{
		UserID:           "u1",
		Role:             "root",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = middleware.ParseToken(signed)
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	useTestConfig(t)
	db := dbtest.New(t)

	active := models.User{Email: "a@example.test", Password: "x", Role: models.RoleAdmin, Status: "active"}
	suspended := models.User{Email: "s@example.test", Password: "x", Role: models.RoleAdmin, Status: "suspended"}
	require.NoError(t, db.Omit("Academy").Create(&active).Error)
	require.NoError(t, db.Omit("Academy").Create(&suspended).Error)

	app := fiber.New()
	app.Get("/me", middleware.JWTMiddleware(), func(c *fiber.Ctx) error {
		u, err := middleware.GetCurrentUser(c)
		if err != nil {
			return err
		}
		return c.SendString(u.Email)
	})

	goodToken, err := middleware.GenerateToken(&active)
	require.NoError(t, err)
	suspendedToken, err := middleware.GenerateToken(&suspended)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"no bearer prefix", goodToken, http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"inactive user", "Bearer " + suspendedToken, http.StatusUnauthorized},
		{"valid", "Bearer " + goodToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRequireRole(t *testing.T) {
	withRole := func(role, academyID string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			c.Locals("claims", &middleware.Claims{UserID: "u1", Role: role, AcademyID: academyID})
			return c.Next()
		}
	}
	ok := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) }

	cases := []struct {
		role string
		gate fiber.Handler
		want int
	}{
		{models.RoleOwner, middleware.RequireOwnerOrAdmin(), http.StatusNoContent},
		{models.RoleTeacher, middleware.RequireOwnerOrAdmin(), http.StatusForbidden},
		{models.RoleTeacher, middleware.RequireStaff(), http.StatusNoContent},
		{models.RoleParent, middleware.RequireStaff(), http.StatusForbidden},
		{models.RoleSuperAdmin, middleware.RequireStaff(), http.StatusNoContent},
		{models.RoleAdmin, middleware.RequireSuperAdmin(), http.StatusForbidden},
	}
	for _, tc := range cases {
		app := fiber.New()
		app.Get("/", withRole(tc.role, "a1"), tc.gate, ok)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.StatusCode, tc.role)
	}

	app := fiber.New()
	app.Get("/", middleware.RequireStaff(), ok)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "no claims at all")
}

func TestAcademyScope(t *testing.T) {
	scopeOf := func(role, academyID string, mutate func(*http.Request)) (int, string) {
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error {
			c.Locals("claims", &middleware.Claims{UserID: "u1", Role: role, AcademyID: academyID})
			scope, err := middleware.AcademyScope(c)
			if err != nil {
				return err
			}
			return c.SendString(scope)
		})
		req := httptest.NewRequest(http.MethodGet, "/?academy_id=from-query", nil)
		if mutate != nil {
			mutate(req)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		buf := make([]byte, 64)
		n, _ := resp.Body.Read(buf)
		return resp.StatusCode, string(buf[:n])
	}

	status, scope := scopeOf(models.RoleAdmin, "mine", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "mine", scope, "members cannot pick another academy")

	status, _ = scopeOf(models.RoleAdmin, "", nil)
	assert.Equal(t, http.StatusForbidden, status)

	_, scope = scopeOf(models.RoleSuperAdmin, "", nil)
	assert.Equal(t, "from-query", scope)

	_, scope = scopeOf(models.RoleSuperAdmin, "", func(r *http.Request) { r.Header.Set("X-Academy-ID", "from-header") })
	assert.Equal(t, "from-header", scope)
}
