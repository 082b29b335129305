// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/handler"
)

// RegisterRoutes registers routes that require no authentication.  Currently
// this exposes only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}
