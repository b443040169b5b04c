package auth

import "github.com/labstack/echo/v4"

// publicPaths bypass authentication and tenant resolution.
var publicPaths = map[string]bool{
	"/health":        true,
	"/health/db":     true,
	"/fhir/metadata": true,
}

// AuthSkipper matches on the route path, so it must run after routing.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
