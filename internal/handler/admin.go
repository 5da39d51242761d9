package handler

// Admin endpoints.  RequireRole(ADMIN) guards the route group, so the
// handlers only add what differs from the customer flow.

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/area-reservation/internal/middleware"
	"github.com/iliyamo/area-reservation/internal/service"
)

type AdminHandler struct {
	Svc *service.ReservationService
}

func NewAdminHandler(svc *service.ReservationService) *AdminHandler {
	if svc == nil {
		panic("nil service passed to NewAdminHandler")
	}
	return &AdminHandler{Svc: svc}
}

// Cancel handles POST /v1/admin/reservations/:id/cancel.  The same
// lifecycle rules apply as for customers: a reservation that already
// started cannot be cancelled.
func (h *AdminHandler) Cancel(c echo.Context) error {
	actor := middleware.Actor(c)
	actor.Admin = true
	res, err := h.Svc.Cancel(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(res))
}

// Expire handles POST /v1/admin/reaper/run: one reaper pass on demand.
func (h *AdminHandler) Expire(c echo.Context) error {
	res, err := h.Svc.ExpireDue(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"scanned": res.Scanned,
		"expired": res.Expired,
		"skipped": res.Skipped,
	})
}
