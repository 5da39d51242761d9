package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/area-reservation/internal/handler"
	"github.com/iliyamo/area-reservation/internal/metrics"
	"github.com/iliyamo/area-reservation/internal/middleware"
	"github.com/iliyamo/area-reservation/internal/service"
)

// Deps is everything the routes need.
type Deps struct {
	Service   *service.ReservationService
	JWTSecret string
	Limiter   *middleware.Limiter // nil disables rate limiting
	Metrics   *metrics.Metrics    // nil hides /metrics
	Pingers   []handler.Pinger    // checked by /healthz
}

// RegisterRoutes registers routes that do not require authentication:
// health, metrics and the price quote.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.Pingers...))
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}
	q := &handler.QuoteHandler{Svc: d.Service}
	e.GET("/v1/quote", q.Quote)
}

// Register wires every route of the API.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d)
	RegisterCustomer(e, handler.NewReservationHandler(d.Service), handler.NewAreaHandler(d.Service), d.JWTSecret, d.Limiter)
	RegisterAdmin(e, handler.NewAdminHandler(d.Service), d.JWTSecret)
}
