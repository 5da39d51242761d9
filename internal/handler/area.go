package handler

// Read-only area views: the reservation timeline and the availability
// check.  Both are open to any authenticated caller; the timeline hides
// user ids and notes from everyone but admins.

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/area-reservation/internal/middleware"
	"github.com/iliyamo/area-reservation/internal/model"
	"github.com/iliyamo/area-reservation/internal/service"
)

type AreaHandler struct {
	Svc *service.ReservationService
}

func NewAreaHandler(svc *service.ReservationService) *AreaHandler {
	if svc == nil {
		panic("nil service passed to NewAreaHandler")
	}
	return &AreaHandler{Svc: svc}
}

// timelineEntry is a reservation as shown on an area timeline.
type timelineEntry struct {
	ID         string `json:"id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Status     string `json:"status"`
	GuestCount int    `json:"guest_count"`
	UserID     string `json:"user_id,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Timeline handles GET /v1/areas/:id/reservations?from=&to=&status=.
// Without a status filter only active (pending, paid) reservations are
// listed.
func (h *AreaHandler) Timeline(c echo.Context) error {
	areaID, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid area id")
	}
	from, err := parseOptionalTime(c.QueryParam("from"))
	if err != nil {
		return badRequest(c, "from must be an RFC 3339 timestamp")
	}
	to, err := parseOptionalTime(c.QueryParam("to"))
	if err != nil {
		return badRequest(c, "to must be an RFC 3339 timestamp")
	}
	statuses, err := model.ParseStatuses(c.QueryParam("status"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	if len(statuses) == 0 {
		statuses = model.ActiveStatuses
	}

	admin := middleware.Actor(c).Admin
	out := make([]timelineEntry, 0)
	seq := h.Svc.ListForArea(c.Request().Context(), areaID, service.DateRange{From: from, To: to}, statuses...)
	for r, err := range seq {
		if err != nil {
			return respondError(c, err)
		}
		e := timelineEntry{
			ID:         r.ID,
			Start:      formatTime(r.Range.Start),
			End:        formatTime(r.Range.End),
			Status:     string(r.Status),
			GuestCount: r.GuestCount,
		}
		if admin {
			e.UserID = r.UserID
			e.Notes = r.Notes
		}
		out = append(out, e)
	}
	return c.JSON(http.StatusOK, out)
}

// Availability handles GET /v1/areas/:id/availability?start=&end=.  The
// answer is advisory; booking re-checks atomically.
func (h *AreaHandler) Availability(c echo.Context) error {
	areaID, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid area id")
	}
	start, err := parseTime(c.QueryParam("start"))
	if err != nil {
		return badRequest(c, "start must be an RFC 3339 timestamp")
	}
	end, err := parseTime(c.QueryParam("end"))
	if err != nil {
		return badRequest(c, "end must be an RFC 3339 timestamp")
	}
	av, err := h.Svc.CheckAvailability(c.Request().Context(), areaID, start, end)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"area_id":   av.AreaID,
		"start":     formatTime(av.Range.Start),
		"end":       formatTime(av.Range.End),
		"available": av.Available,
	})
}
