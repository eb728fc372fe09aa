package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(sub string, roles ...string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Name:  "Dra. Laura Perdomo",
		Roles: roles,
	}
}

func runJWT(t *testing.T, cfg JWTConfig, path, header string, handler echo.HandlerFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if handler == nil {
		handler = func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	}
	return JWTMiddleware(cfg)(handler)(c)
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "/api/v1/athletes", "", nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "/api/v1/athletes", tt.header, nil)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("user-123", RolePhysician), testSigningKey)

	called := false
	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "/api/v1/athletes", "Bearer "+tokenStr,
		func(c echo.Context) error {
			called = true
			return c.NoContent(http.StatusOK)
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("user-123"), []byte("some-other-key"))
	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "/api/v1/athletes", "Bearer "+tokenStr, nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims("user-123")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))

	tokenStr := createTestToken(t, claims, testSigningKey)
	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "/api/v1/athletes", "Bearer "+tokenStr, nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	claims := validClaims("user-123")
	claims.Issuer = "https://other-issuer"
	tokenStr := createTestToken(t, claims, testSigningKey)

	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "https://auth.inderhuila.gov.co"}
	err := runJWT(t, cfg, "/api/v1/athletes", "Bearer "+tokenStr, nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ClaimsExtraction(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("user-456", RolePhysician, RoleNurse), testSigningKey)

	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "/api/v1/athletes", "Bearer "+tokenStr,
		func(c echo.Context) error {
			ctx := c.Request().Context()
			if uid := UserIDFromContext(ctx); uid != "user-456" {
				t.Errorf("expected user_id=user-456, got %s", uid)
			}
			if name := UserNameFromContext(ctx); name != "Dra. Laura Perdomo" {
				t.Errorf("expected name, got %q", name)
			}
			roles := RolesFromContext(ctx)
			if len(roles) != 2 || roles[0] != RolePhysician || roles[1] != RoleNurse {
				t.Errorf("expected roles=[physician nurse], got %v", roles)
			}
			return c.NoContent(http.StatusOK)
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTMiddleware_JWKS(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		_ = json.NewEncoder(w).Encode(JWKSResponse{Keys: []JWKSKey{{
			Kty: "RSA",
			Kid: "k1",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(priv.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(priv.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("user-rsa", RoleNurse))
	token.Header["kid"] = "k1"
	tokenStr, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cfg := JWTConfig{JWKSURL: srv.URL}
	mw := JWTMiddleware(cfg)
	e := echo.New()
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/athletes", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		c := e.NewContext(req, httptest.NewRecorder())
		if err := mw(func(c echo.Context) error { return nil })(c); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
	}
	if fetches != 1 {
		t.Errorf("expected JWKS to be fetched once and cached, got %d fetches", fetches)
	}
}

func TestDevAuthMiddleware_WithDefaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/athletes", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := func(c echo.Context) error {
		ctx := c.Request().Context()
		if uid := UserIDFromContext(ctx); uid != "dev-user" {
			t.Errorf("expected user_id=dev-user, got %s", uid)
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 1 || roles[0] != RoleAdmin {
			t.Errorf("expected roles=[admin], got %v", roles)
		}
		return c.NoContent(http.StatusOK)
	}

	if err := DevAuthMiddleware(nil)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
