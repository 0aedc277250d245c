package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass login. These are infrastructure
// endpoints that must answer without a session.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

// AuthSkipper returns true for requests whose route should skip login.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

