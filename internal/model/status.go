package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a reservation.  The set is closed:
// only the four constants below are valid.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusPaid, StatusCancelled, StatusExpired}

// ActiveStatuses are the statuses that hold a slot on the area timeline.
var ActiveStatuses = []Status{StatusPending, StatusPaid}

// IsActive reports whether a reservation in this status blocks its range.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusPaid
}

// IsTerminal reports whether no transition can leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus converts a case-insensitive string into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown reservation status %q", v)
	}
	return s, nil
}

// ParseStatuses parses a comma separated list such as "pending,paid".
// An empty input yields a nil slice meaning "any status".
func ParseStatuses(v string) ([]Status, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	var out []Status
	for _, p := range strings.Split(v, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		s, err := ParseStatus(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
