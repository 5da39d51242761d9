package router

// This file registers admin routes.  They live under /v1/admin so the
// customer group's middleware never sees them.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/area-reservation/internal/handler"
	"github.com/iliyamo/area-reservation/internal/middleware"
)

// RegisterAdmin mounts the ADMIN-only endpoints.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)
	// Cancel any reservation before it starts (admin override)
	g.POST("/reservations/:id/cancel", h.Cancel)
	// Run one expiry pass now instead of waiting for the reaper tick
	g.POST("/reaper/run", h.Expire)
}
