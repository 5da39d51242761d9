// Package pricing turns a reservation duration into a price.  The policy
// is a pure function of the duration so a stored total can be audited
// against the reservation's start and end at any later time.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/area-reservation/internal/model"
)

const minutesPerBlock = 60

// Policy bills the first hour (or any part of it) at Base and every
// further started hour at Increment.
type Policy struct {
	Base      decimal.Decimal
	Increment decimal.Decimal
}

// DefaultPolicy is 5.00 for the first hour and 2.50 per extra hour.
func DefaultPolicy() Policy {
	return Policy{
		Base:      decimal.RequireFromString("5.00"),
		Increment: decimal.RequireFromString("2.50"),
	}
}

// NewPolicy parses decimal strings such as "5.00".  Negative amounts are
// rejected.
func NewPolicy(base, increment string) (Policy, error) {
	b, err := decimal.NewFromString(base)
	if err != nil {
		return Policy{}, fmt.Errorf("base price %q: %w", base, err)
	}
	i, err := decimal.NewFromString(increment)
	if err != nil {
		return Policy{}, fmt.Errorf("increment price %q: %w", increment, err)
	}
	if b.IsNegative() || i.IsNegative() {
		return Policy{}, fmt.Errorf("prices must not be negative (base=%s increment=%s)", base, increment)
	}
	return Policy{Base: b, Increment: i}, nil
}

// BilledHours rounds durationMinutes up to whole hours.
func BilledHours(durationMinutes int) int {
	return (durationMinutes + minutesPerBlock - 1) / minutesPerBlock
}

// Price returns the amount owed for a reservation of durationMinutes.
// It fails with model.ErrInvalidDuration when durationMinutes <= 0.
func (p Policy) Price(durationMinutes int) (decimal.Decimal, error) {
	if durationMinutes <= 0 {
		return decimal.Zero, model.ErrInvalidDuration
	}
	hours := BilledHours(durationMinutes)
	if hours <= 1 {
		return p.Base.Round(2), nil
	}
	extra := p.Increment.Mul(decimal.NewFromInt(int64(hours - 1)))
	return p.Base.Add(extra).Round(2), nil
}

// PriceRange prices a validated time range.
func (p Policy) PriceRange(r model.TimeRange) (decimal.Decimal, error) {
	if !r.IsValid() {
		return decimal.Zero, model.ErrInvalidRange
	}
	return p.Price(r.DurationMinutes())
}

// Quote is a price breakdown shown before booking.
type Quote struct {
	DurationMinutes int
	BilledHours     int
	Base            decimal.Decimal
	Increment       decimal.Decimal
	Total           decimal.Decimal
}

// Quote prices r and returns the breakdown.
func (p Policy) Quote(r model.TimeRange) (Quote, error) {
	total, err := p.PriceRange(r)
	if err != nil {
		return Quote{}, err
	}
	m := r.DurationMinutes()
	return Quote{
		DurationMinutes: m,
		BilledHours:     BilledHours(m),
		Base:            p.Base,
		Increment:       p.Increment,
		Total:           total,
	}, nil
}
