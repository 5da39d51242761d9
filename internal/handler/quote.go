package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/area-reservation/internal/service"
)

// QuoteHandler previews prices.  It needs no authentication.
type QuoteHandler struct {
	Svc *service.ReservationService
}

// Quote handles GET /v1/quote?start=&end=.
func (h *QuoteHandler) Quote(c echo.Context) error {
	start, err := parseTime(c.QueryParam("start"))
	if err != nil {
		return badRequest(c, "start must be an RFC 3339 timestamp")
	}
	end, err := parseTime(c.QueryParam("end"))
	if err != nil {
		return badRequest(c, "end must be an RFC 3339 timestamp")
	}
	q, err := h.Svc.Quote(start, end)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"duration_minutes": q.DurationMinutes,
		"billed_hours":     q.BilledHours,
		"base_price":       q.Base.StringFixed(2),
		"increment_price":  q.Increment.StringFixed(2),
		"total_price":      q.Total.StringFixed(2),
	})
}
