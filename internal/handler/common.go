package handler // handler defines http handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/area-reservation/internal/model"
)

// statusByCode maps the stable error codes of package model to HTTP
// statuses.  Unknown codes are 500.
var statusByCode = map[string]int{
	"invalid_range":               http.StatusBadRequest,
	"invalid_duration":            http.StatusBadRequest,
	"invalid_notes":               http.StatusBadRequest,
	"invalid_booking_window":      http.StatusUnprocessableEntity,
	"capacity_exceeded":           http.StatusUnprocessableEntity,
	"area_inactive":               http.StatusUnprocessableEntity,
	"slot_unavailable":            http.StatusConflict,
	"invalid_status_transition":   http.StatusConflict,
	"reservation_already_started": http.StatusConflict,
	"forbidden":                   http.StatusForbidden,
	"not_found":                   http.StatusNotFound,
	"storage_unavailable":         http.StatusServiceUnavailable,
}

// StatusFor returns the HTTP status for an error returned by the service.
func StatusFor(err error) int {
	if s, ok := statusByCode[model.Code(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": code, "message": text}.  Internal errors
// are logged and hidden from the client.
func respondError(c echo.Context, err error) error {
	code := model.Code(err)
	status := StatusFor(err)
	msg := model.Message(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}

// reservationResponse is the wire shape of a reservation.  Money is a
// fixed two-decimal string and instants are RFC 3339 UTC.
type reservationResponse struct {
	ID              string `json:"id"`
	AreaID          uint64 `json:"area_id"`
	UserID          string `json:"user_id"`
	Start           string `json:"start"`
	End             string `json:"end"`
	GuestCount      int    `json:"guest_count"`
	Status          string `json:"status"`
	TotalPrice      string `json:"total_price"`
	Notes           string `json:"notes"`
	CreatedAt       string `json:"created_at"`
	StatusChangedAt string `json:"status_changed_at"`
}

func toResponse(r model.Reservation) reservationResponse {
	return reservationResponse{
		ID:              r.ID,
		AreaID:          r.AreaID,
		UserID:          r.UserID,
		Start:           formatTime(r.Range.Start),
		End:             formatTime(r.Range.End),
		GuestCount:      r.GuestCount,
		Status:          string(r.Status),
		TotalPrice:      r.TotalPrice.StringFixed(2),
		Notes:           r.Notes,
		CreatedAt:       formatTime(r.CreatedAt),
		StatusChangedAt: formatTime(r.StatusChangedAt),
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// parseTime accepts RFC 3339 with or without fractional seconds.
func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

// parseOptionalTime returns the zero time for an empty value.
func parseOptionalTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return parseTime(v)
}

func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
