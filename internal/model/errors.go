package model

import "errors"

// Error kinds returned by the engine.  Callers compare with errors.Is;
// every kind maps to a stable code through Code so clients can tell
// "pick another time" apart from "you can't do that".
var (
	ErrInvalidRange              = errors.New("time range start must be before end")
	ErrInvalidDuration           = errors.New("duration must be positive")
	ErrAreaInactive              = errors.New("area is not accepting reservations")
	ErrInvalidBookingWindow      = errors.New("start time is outside the booking window")
	ErrCapacityExceeded          = errors.New("guest count is outside the area capacity")
	ErrSlotUnavailable           = errors.New("time slot is no longer available")
	ErrInvalidStatusTransition   = errors.New("invalid reservation status transition")
	ErrReservationAlreadyStarted = errors.New("reservation window has already started")
	ErrForbidden                 = errors.New("forbidden")
	ErrNotFound                  = errors.New("not found")
	ErrStorageUnavailable        = errors.New("storage unavailable")
	ErrInvalidNotes              = errors.New("notes are too long")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidRange, "invalid_range"},
	{ErrInvalidDuration, "invalid_duration"},
	{ErrAreaInactive, "area_inactive"},
	{ErrInvalidBookingWindow, "invalid_booking_window"},
	{ErrCapacityExceeded, "capacity_exceeded"},
	{ErrSlotUnavailable, "slot_unavailable"},
	{ErrInvalidStatusTransition, "invalid_status_transition"},
	{ErrReservationAlreadyStarted, "reservation_already_started"},
	{ErrForbidden, "forbidden"},
	{ErrNotFound, "not_found"},
	{ErrStorageUnavailable, "storage_unavailable"},
	{ErrInvalidNotes, "invalid_notes"},
}

// Code returns the stable machine-readable code for err, or "internal"
// when err does not wrap one of the engine's kinds.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// Message returns the user-facing message of the engine kind wrapped by
// err, hiding wrapping context such as operation names.
func Message(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.err.Error()
		}
	}
	return "internal error"
}
