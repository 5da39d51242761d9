package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation records one user's booking of one area for one contiguous
// time range.  Reservations are never deleted; cancellation and expiry
// are status changes so the table doubles as an audit history.
//
// Fields:
//  ID              - UUID assigned at creation.
//  AreaID          - booked area; immutable.
//  UserID          - opaque identity of the requester; immutable.
//  Range           - booked [start, end) window; immutable.
//  GuestCount      - party size, checked against area capacity at creation.
//  Status          - lifecycle state, the only field transitions touch.
//  TotalPrice      - computed once from Range by the pricing policy.
//  Notes           - free text, editable only while pending.
//  CreatedAt       - creation timestamp.
//  StatusChangedAt - timestamp of the last status transition.
type Reservation struct {
	ID              string          // reservations.id
	AreaID          uint64          // reservations.area_id
	UserID          string          // reservations.user_id
	Range           TimeRange       // reservations.start_at / end_at
	GuestCount      int             // reservations.guest_count
	Status          Status          // reservations.status
	TotalPrice      decimal.Decimal // reservations.total_price
	Notes           string          // reservations.notes
	CreatedAt       time.Time       // reservations.created_at
	StatusChangedAt time.Time       // reservations.status_changed_at
}

// OwnedBy reports whether userID created the reservation.
func (r Reservation) OwnedBy(userID string) bool {
	return userID != "" && r.UserID == userID
}

// Actor is the authenticated caller of an operation.  Admin callers may
// act on reservations they do not own.
type Actor struct {
	UserID string
	Admin  bool
}

// CanAccess reports whether the actor may read or cancel r.
func (a Actor) CanAccess(r Reservation) bool {
	return a.Admin || r.OwnedBy(a.UserID)
}
