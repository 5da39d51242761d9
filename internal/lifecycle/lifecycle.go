// Package lifecycle owns the reservation state machine.  Every status
// change in the engine is validated here; stores then apply the returned
// Transition as a compare-and-swap on Transition.From.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/iliyamo/area-reservation/internal/model"
)

// Action is a business operation that moves a reservation between states.
type Action string

const (
	ActionPay    Action = "pay"
	ActionCancel Action = "cancel"
	ActionExpire Action = "expire"
)

type rule struct {
	from []model.Status
	to   model.Status
}

var rules = map[Action]rule{
	ActionPay:    {from: []model.Status{model.StatusPending}, to: model.StatusPaid},
	ActionCancel: {from: []model.Status{model.StatusPending, model.StatusPaid}, to: model.StatusCancelled},
	ActionExpire: {from: []model.Status{model.StatusPending}, to: model.StatusExpired},
}

// Transition is a validated edge ready to be persisted.
type Transition struct {
	Action Action
	From   model.Status
	To     model.Status
	At     time.Time
}

// CanTransition reports whether some action leads from -> to.
func CanTransition(from, to model.Status) bool {
	for _, r := range rules {
		if r.to == to && contains(r.from, from) {
			return true
		}
	}
	return false
}

// Apply validates action against the reservation's current status and the
// instant now.  grace only affects ActionExpire: a pending reservation may
// be expired once now >= start - grace.
//
// Status is checked before time, so a cancelled or expired reservation
// always yields ErrInvalidStatusTransition.
func Apply(r model.Reservation, action Action, now time.Time, grace time.Duration) (Transition, error) {
	rl, ok := rules[action]
	if !ok {
		return Transition{}, fmt.Errorf("unknown action %q: %w", action, model.ErrInvalidStatusTransition)
	}
	if !contains(rl.from, r.Status) {
		return Transition{}, fmt.Errorf("%s from %s: %w", action, r.Status, model.ErrInvalidStatusTransition)
	}
	switch action {
	case ActionPay, ActionCancel:
		if !now.Before(r.Range.Start) {
			return Transition{}, model.ErrReservationAlreadyStarted
		}
	case ActionExpire:
		if !Due(r, now, grace) {
			return Transition{}, fmt.Errorf("expire before %s: %w", r.Range.Start.Add(-grace).Format(time.RFC3339), model.ErrInvalidStatusTransition)
		}
	}
	return Transition{Action: action, From: r.Status, To: rl.to, At: now.UTC()}, nil
}

// Due reports whether a pending reservation has reached its expiry point.
func Due(r model.Reservation, now time.Time, grace time.Duration) bool {
	return r.Status == model.StatusPending && !now.Before(r.Range.Start.Add(-grace))
}

func contains(set []model.Status, s model.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
