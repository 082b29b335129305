package router

import (
	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/handler"
	"github.com/dvaldes/gradgala/internal/middleware"
)

// RegisterAuth registers the authentication endpoints.  Register, login and
// the refresh variants are unauthenticated; logout requires a valid access
// token since it revokes every session of the caller.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))
}
