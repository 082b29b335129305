package router

import (
	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/handler"
	"github.com/dvaldes/gradgala/internal/middleware"
	"github.com/dvaldes/gradgala/internal/model"
)

// GraduateHandlers bundles the handlers mounted under the graduate surface.
type GraduateHandlers struct {
	Layout    *handler.LayoutHandler
	Tickets   *handler.TicketsHandler
	Meals     *handler.MealsHandler
	Thermo    *handler.ThermoHandler
	Payments  *handler.PaymentsHandler
	Dashboard *handler.DashboardHandler
}

// RegisterGraduate registers the graduate-scoped endpoints under /v1.  The
// layout overview is also reachable anonymously; everything under
// /v1/graduates/me requires a valid JWT with the GRADUATE role.
func RegisterGraduate(e *echo.Echo, h GraduateHandlers, jwtSecret string, cacheMW echo.MiddlewareFunc) {
	// Public surface: the layout overview renders for guests too, and the
	// payment config carries only publishable credentials.  The overview is
	// worth caching because every attendee polls it.
	pub := e.Group("/v1", middleware.OptionalJWTAuth(jwtSecret))
	if cacheMW != nil {
		pub.GET("/events/:id/layout", h.Layout.Overview, cacheMW)
	} else {
		pub.GET("/events/:id/layout", h.Layout.Overview)
	}
	e.GET("/v1/payments/config", h.Payments.Config)

	g := e.Group(
		"/v1/graduates/me",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleGraduate, model.RoleAdmin),
	)
	g.GET("", h.Dashboard.Profile)
	g.GET("/dashboard", h.Dashboard.Dashboard)

	g.POST("/tickets", h.Tickets.Create)
	g.DELETE("/tickets", h.Tickets.Reset)
	g.GET("/guests", h.Tickets.ListGuests)
	g.POST("/guests", h.Tickets.AddGuests)
	g.PATCH("/guests/:id", h.Tickets.UpdateGuest)

	g.GET("/layout/selection", h.Layout.MySelection)
	g.POST("/layout/selection", h.Layout.SelectTable)

	g.GET("/meals", h.Meals.Overview)
	g.PATCH("/meals/:id", h.Meals.UpdateMeal)

	g.GET("/thermo", h.Thermo.Status)
	g.POST("/thermo", h.Thermo.Customize)

	g.POST("/payments/charge", h.Payments.CreateCharge)
	g.GET("/payments/summary", h.Payments.Summary)
	g.GET("/payments/history", h.Payments.History)
}

// RegisterWebhooks registers the gateway callback endpoint.  The gateway
// authenticates with a body signature, not a JWT.
func RegisterWebhooks(e *echo.Echo, p *handler.PaymentsHandler) {
	e.POST("/v1/webhooks/openpay", p.Webhook)
}
