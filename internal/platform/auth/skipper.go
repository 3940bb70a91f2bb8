package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass the session check: health probes,
// metrics and the login flow itself.
var publicPaths = map[string]bool{
	"/health":          true,
	"/health/db":       true,
	"/metrics":         true,
	"/api/auth/login":  true,
	"/api/auth/check":  true,
	"/api/auth/logout": true,
}

// publicPrefixes are path prefixes served without a session (letterhead
// images referenced by the preview page).
var publicPrefixes = []string{"/assets/"}

// AuthSkipper returns true for requests whose path should skip the session
// check. Both the matched route and the raw request path are considered.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path()) || IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether path is served without a session.
func IsPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
