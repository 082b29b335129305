package router

import (
	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/handler"
	"github.com/dvaldes/gradgala/internal/middleware"
	"github.com/dvaldes/gradgala/internal/model"
)

// RegisterAdmin registers event and table administration under /v1/admin.
// Every route requires the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/events", h.CreateEvent)
	g.POST("/events/:id/tables", h.CreateTables)
	g.PATCH("/tables/:id/status", h.UpdateTableStatus)
	g.GET("/events/:id/selections", h.Roster)
}
