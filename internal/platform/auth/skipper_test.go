package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestIsPublicPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/health/db", true},
		{"/api/v1/public/tokens/verify", true},
		{"/api/v1/public/tokens/abc/download", true},
		{"/api/v1/public/tokens/abc/status", true},
		{"/api/v1/tokens", false},
		{"/api/v1/athletes", false},
		{"/api/v1/publicity", false},
		{"/", false},
	}
	for _, tt := range tests {
		if got := IsPublicPath(tt.path); got != tt.want {
			t.Errorf("IsPublicPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	for _, path := range []string{"/health", "/api/v1/public/tokens/verify"} {
		called := false
		err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper}, path, "",
			func(c echo.Context) error {
				called = true
				return nil
			})
		if err != nil {
			t.Fatalf("%s: expected no error for skipped path, got: %v", path, err)
		}
		if !called {
			t.Errorf("%s: expected handler to be called", path)
		}
	}
}

func TestJWTMiddleware_DoesNotSkipProtectedPaths(t *testing.T) {
	err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper}, "/api/v1/tokens", "", nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_NilSkipperDoesNotSkip(t *testing.T) {
	err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "/health", "", nil)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_AuthStillWorksWithSkipper(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("user-1", RoleNurse), testSigningKey)
	err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper}, "/api/v1/tokens", "Bearer "+tokenStr,
		func(c echo.Context) error {
			if uid := UserIDFromContext(c.Request().Context()); uid != "user-1" {
				t.Errorf("expected user-1, got %s", uid)
			}
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDevAuthMiddleware_SkipsPublicPaths(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/tokens/abc/status", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := DevAuthMiddleware(AuthSkipper)(func(c echo.Context) error {
		if uid := UserIDFromContext(c.Request().Context()); uid != "" {
			t.Errorf("public path must not carry a staff identity, got %q", uid)
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
