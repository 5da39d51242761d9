package model

import (
	"time"
)

// TimeRange is a half-open interval [Start, End) of instants.  Both
// bounds are kept in UTC.  The zero value is not a valid range; use
// NewTimeRange to construct one.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange validates that start is strictly before end and returns
// the range normalized to UTC.  It fails with ErrInvalidRange otherwise.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return TimeRange{}, ErrInvalidRange
	}
	return TimeRange{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether the two ranges share at least one instant.
// Touching ranges (r.End == other.Start) do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Contains reports whether t falls inside [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// DurationMinutes returns the length of the range in whole minutes.  A
// trailing partial minute counts as a full one so billing never
// undercounts the booked span.
func (r TimeRange) DurationMinutes() int {
	d := r.Duration()
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

// IsValid reports whether the range satisfies Start < End.
func (r TimeRange) IsValid() bool {
	return !r.Start.IsZero() && r.Start.Before(r.End)
}
