package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// PublicPrefix is the route group served without staff credentials: the
// download-token endpoints used by athletes.
const PublicPrefix = "/api/v1/public/"

var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

// AuthSkipper returns true for requests that bypass authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether path is a health check or lives under PublicPrefix.
func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, PublicPrefix)
}
