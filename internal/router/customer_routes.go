package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/area-reservation/internal/handler"
	"github.com/iliyamo/area-reservation/internal/middleware"
)

// RegisterCustomer registers the reservation endpoints under /v1.  All
// routes require a valid JWT with the CUSTOMER or ADMIN role; ownership is
// checked by the service.  Mutating routes consume rate limit tokens.
func RegisterCustomer(e *echo.Echo, h *handler.ReservationHandler, a *handler.AreaHandler, jwtSecret string, limiter *middleware.Limiter) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin),
	)
	limited := limiter.Middleware()

	g.POST("/reservations", h.Create, limited)
	g.GET("/reservations/:id", h.Get)
	g.POST("/reservations/:id/pay", h.Pay, limited)
	g.POST("/reservations/:id/cancel", h.Cancel, limited)
	g.PATCH("/reservations/:id/notes", h.UpdateNotes, limited)
	g.GET("/my-reservations", h.ListMine)

	// Area views used by the booking UI to pick a free slot.
	g.GET("/areas/:id/reservations", a.Timeline)
	g.GET("/areas/:id/availability", a.Availability)
}
