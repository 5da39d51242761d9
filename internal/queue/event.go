// Package queue defines the reservation events exchanged over the message
// broker, the publisher used by the service and the consumer that turns
// them into an append-only log.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/area-reservation/internal/model"
)

// EventsQueue is the durable queue every reservation event goes to.
const EventsQueue = "reservation.events"

// EventType names what happened to a reservation.
type EventType string

const (
	EventCreated   EventType = "reservation.created"
	EventPaid      EventType = "reservation.paid"
	EventCancelled EventType = "reservation.cancelled"
	EventExpired   EventType = "reservation.expired"
)

// ReservationEvent carries enough of the reservation for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary store.
type ReservationEvent struct {
	Type          EventType `json:"type"`
	ReservationID string    `json:"reservation_id"`
	AreaID        uint64    `json:"area_id"`
	UserID        string    `json:"user_id"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	GuestCount    int       `json:"guest_count"`
	Status        string    `json:"status"`
	TotalPrice    string    `json:"total_price"`
	OccurredAt    string    `json:"occurred_at"`
	// Actor is set for cancellations: the user or "admin:<id>".
	Actor string `json:"actor,omitempty"`
}

// NewReservationEvent snapshots r.  Times are RFC 3339 in UTC and the
// price keeps two decimals.
func NewReservationEvent(t EventType, r model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          t,
		ReservationID: r.ID,
		AreaID:        r.AreaID,
		UserID:        r.UserID,
		Start:         r.Range.Start.UTC().Format(time.RFC3339),
		End:           r.Range.End.UTC().Format(time.RFC3339),
		GuestCount:    r.GuestCount,
		Status:        string(r.Status),
		TotalPrice:    r.TotalPrice.StringFixed(2),
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}

// Publisher delivers reservation events.  Callers treat failures as
// non-fatal.
type Publisher interface {
	Publish(ctx context.Context, ev ReservationEvent) error
}

// NoopPublisher drops every event.  It is used when EVENTS_ENABLED is off.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ReservationEvent) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []ReservationEvent
}

func (r *Recorder) Publish(_ context.Context, ev ReservationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []ReservationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ReservationEvent(nil), r.events...)
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}
