package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/area-reservation/internal/middleware"
	"github.com/iliyamo/area-reservation/internal/model"
	"github.com/iliyamo/area-reservation/internal/service"
)

// ReservationHandler serves the customer reservation endpoints.  All
// methods assume JWTAuth and RequireRole already ran; the caller is read
// from the context.
type ReservationHandler struct {
	Svc *service.ReservationService
}

// NewReservationHandler panics on a nil service.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

type createRequest struct {
	AreaID     uint64 `json:"area_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	GuestCount int    `json:"guest_count"`
	Notes      string `json:"notes"`
}

// Create handles POST /v1/reservations.  On success it returns 201 with
// the pending reservation and its price.  A lost race for the slot is 409
// slot_unavailable.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body createRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.AreaID == 0 {
		return badRequest(c, "area_id is required")
	}
	start, err := parseTime(body.Start)
	if err != nil {
		return badRequest(c, "start must be an RFC 3339 timestamp")
	}
	end, err := parseTime(body.End)
	if err != nil {
		return badRequest(c, "end must be an RFC 3339 timestamp")
	}
	res, err := h.Svc.Create(c.Request().Context(), service.CreateRequest{
		UserID:     middleware.UserID(c),
		AreaID:     body.AreaID,
		Start:      start,
		End:        end,
		GuestCount: body.GuestCount,
		Notes:      body.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toResponse(res))
}

// Get handles GET /v1/reservations/:id for the owner or an admin.
func (h *ReservationHandler) Get(c echo.Context) error {
	res, err := h.Svc.Get(c.Request().Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(res))
}

// Pay handles POST /v1/reservations/:id/pay.  Payment itself happens
// elsewhere; this records it.
func (h *ReservationHandler) Pay(c echo.Context) error {
	res, err := h.Svc.ConfirmPayment(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(res))
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	res, err := h.Svc.Cancel(c.Request().Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(res))
}

// UpdateNotes handles PATCH /v1/reservations/:id/notes with body
// {"notes": "..."}.
func (h *ReservationHandler) UpdateNotes(c echo.Context) error {
	var body struct {
		Notes *string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil || body.Notes == nil {
		return badRequest(c, "notes is required")
	}
	res, err := h.Svc.UpdateNotes(c.Request().Context(), c.Param("id"), middleware.UserID(c), *body.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(res))
}

// ListMine handles GET /v1/my-reservations?status=pending,paid&upcoming=true.
// An empty array is returned when nothing matches.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	statuses, err := model.ParseStatuses(c.QueryParam("status"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	upcoming := false
	switch c.QueryParam("upcoming") {
	case "", "false", "0":
	case "true", "1":
		upcoming = true
	default:
		return badRequest(c, "upcoming must be true or false")
	}
	seq := h.Svc.ListForUser(c.Request().Context(), middleware.UserID(c), service.UserFilter{
		Statuses: statuses,
		Upcoming: upcoming,
	})
	out := make([]reservationResponse, 0)
	for r, err := range seq {
		if err != nil {
			return respondError(c, err)
		}
		out = append(out, toResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}
