package repository

import (
	"context"
	"time"

	"github.com/iliyamo/area-reservation/internal/lifecycle"
	"github.com/iliyamo/area-reservation/internal/model"
)

// Store persists reservations.  Implementations must make Create's
// availability check and insert a single atomic unit per area, and apply
// Transition as a compare-and-swap on the prior status.
type Store interface {
	// Create inserts res if no active reservation of the same area
	// overlaps res.Range.  It returns model.ErrSlotUnavailable otherwise.
	Create(ctx context.Context, res model.Reservation) error
	// IsAvailable is a read-only check; it gives no guarantee that a
	// later Create succeeds.
	IsAvailable(ctx context.Context, areaID uint64, r model.TimeRange, excludeID string) (bool, error)
	Get(ctx context.Context, id string) (model.Reservation, error)
	// Transition moves id from t.From to t.To.  It returns
	// model.ErrInvalidStatusTransition when the stored status is no
	// longer t.From.
	Transition(ctx context.Context, id string, t lifecycle.Transition) (model.Reservation, error)
	// UpdateNotes replaces the notes of a pending reservation.
	UpdateNotes(ctx context.Context, id, notes string) (model.Reservation, error)
	ListByUser(ctx context.Context, userID string, q ListQuery) ([]model.Reservation, error)
	ListByArea(ctx context.Context, areaID uint64, q ListQuery) ([]model.Reservation, error)
	// ListDuePending returns pending reservations starting at or before
	// cutoff, oldest first.
	ListDuePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Reservation, error)
}

// Cursor is a keyset position in (start, id) order.
type Cursor struct {
	Start time.Time
	ID    string
}

// After reports whether r sorts strictly after the cursor.
func (c *Cursor) After(r model.Reservation) bool {
	if c == nil {
		return true
	}
	if !r.Range.Start.Equal(c.Start) {
		return r.Range.Start.After(c.Start)
	}
	return r.ID > c.ID
}

// CursorOf returns the cursor positioned on r.
func CursorOf(r model.Reservation) *Cursor {
	return &Cursor{Start: r.Range.Start, ID: r.ID}
}

// ListQuery filters and pages reservation listings.  Results are always
// ordered by start ascending, then id.
type ListQuery struct {
	Statuses   []model.Status // empty means any status
	StartAfter time.Time      // zero means no lower bound on start
	// Window keeps reservations overlapping [From, To); zero values disable it.
	From  time.Time
	To    time.Time
	After *Cursor
	Limit int
}

// Match applies every filter except paging.
func (q ListQuery) Match(r model.Reservation) bool {
	if len(q.Statuses) > 0 {
		ok := false
		for _, s := range q.Statuses {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !q.StartAfter.IsZero() && !r.Range.Start.After(q.StartAfter) {
		return false
	}
	if !q.From.IsZero() && !r.Range.End.After(q.From) {
		return false
	}
	if !q.To.IsZero() && !r.Range.Start.Before(q.To) {
		return false
	}
	return true
}

func statusStrings(ss []model.Status) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, string(s))
	}
	return out
}
