package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenString
}

func createValidJWT(t *testing.T, userID, email, role string) string {
	return signToken(t, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"name":  "Dra. Ana",
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}, testSecret)
}

func serve(mw echo.MiddlewareFunc, path, authorization string, inner echo.HandlerFunc) *httptest.ResponseRecorder {
	e := echo.New()
	if inner == nil {
		inner = func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = mw(inner)(c)
	return rec
}

func TestJWTMiddleware_SuccessfulAuthentication(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{Secret: testSecret, Logger: zap.NewNop()})

	rec := serve(mw, "/api/v1/plans", "Bearer "+createValidJWT(t, "user-123", "ana@clinica.com.br", "customer"), func(c echo.Context) error {
		user, err := GetUserFromContext(c)
		require.NoError(t, err)
		assert.Equal(t, "user-123", user.UserID)
		assert.Equal(t, "ana@clinica.com.br", user.Email)
		assert.Equal(t, "Dra. Ana", user.Name)
		assert.Equal(t, "customer", user.Role)

		id, err := GetUserID(c)
		require.NoError(t, err)
		assert.Equal(t, "user-123", id)
		return c.NoContent(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	expired := signToken(t, jwt.MapClaims{"sub": "user-123", "exp": time.Now().Add(-time.Minute).Unix()}, testSecret)
	wrongKey := signToken(t, jwt.MapClaims{"sub": "user-123", "exp": time.Now().Add(time.Hour).Unix()}, "other-secret")
	noSubject := signToken(t, jwt.MapClaims{"email": "a@b.c", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)

	tests := []struct {
		name          string
		authorization string
		code          string
	}{
		{"missing header", "", "MISSING_AUTH_HEADER"},
		{"not bearer", "Basic dXNlcjpwYXNz", "INVALID_AUTH_FORMAT"},
		{"expired", "Bearer " + expired, "INVALID_TOKEN"},
		{"wrong key", "Bearer " + wrongKey, "INVALID_TOKEN"},
		{"garbage", "Bearer not.a.jwt", "INVALID_TOKEN"},
		{"no subject", "Bearer " + noSubject, "MISSING_SUBJECT"},
	}

	mw := JWTMiddleware(JWTConfig{Secret: testSecret, Logger: zap.NewNop()})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mw, "/api/v1/checkout", tt.authorization, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}

func TestJWTMiddleware_SkipPaths(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{
		Secret:    testSecret,
		Logger:    zap.NewNop(),
		SkipPaths: []string{"/health", "/webhooks"},
	})

	rec := serve(mw, "/webhooks/mercadopago", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	jwtMW := JWTMiddleware(JWTConfig{Secret: testSecret, Logger: zap.NewNop()})
	adminOnly := RequireRole(zap.NewNop(), "admin")
	chain := func(next echo.HandlerFunc) echo.HandlerFunc { return jwtMW(adminOnly(next)) }

	t.Run("admin allowed", func(t *testing.T) {
		rec := serve(chain, "/api/v1/admin/coupons", "Bearer "+createValidJWT(t, "op-1", "ops@clinicore.com.br", "admin"), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("customer forbidden", func(t *testing.T) {
		rec := serve(chain, "/api/v1/admin/coupons", "Bearer "+createValidJWT(t, "user-1", "ana@clinica.com.br", "customer"), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "FORBIDDEN")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := serve(adminOnly, "/api/v1/admin/coupons", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetUserFromContext_Empty(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, err := GetUserFromContext(c)
	assert.Error(t, err)

	c.SetRequest(c.Request().WithContext(WithUser(c.Request().Context(), &AuthUser{UserID: "user-9"})))
	id, err := GetUserID(c)
	require.NoError(t, err)
	assert.Equal(t, "user-9", id)
}
